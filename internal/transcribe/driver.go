package transcribe

import (
	"context"
	"strings"

	"github.com/mgpai22/captionjob/internal/logging"
)

// Driver runs recognition passes against a loaded model. The primary pass
// always decodes in WorkingLanguage.
type Driver struct {
	model  Model
	decode DecodeOptions
	logger *logging.Logger
}

func NewDriver(model Model, decode DecodeOptions, logger *logging.Logger) *Driver {
	if decode.BeamSize <= 0 {
		decode.BeamSize = 1
	}
	if decode.BestOf <= 0 {
		decode.BestOf = 1
	}
	decode.Language = WorkingLanguage
	return &Driver{model: model, decode: decode, logger: logger}
}

// Transcribe starts the primary recognition pass. The hint is informational
// only and never changes the decoding language.
func (d *Driver) Transcribe(
	ctx context.Context,
	source string,
	hint string,
) (Stream, SessionInfo, error) {
	if hint != "" && !strings.EqualFold(hint, WorkingLanguage) {
		d.logger.Warnw("Ignoring language hint",
			"hint", hint,
			"language", WorkingLanguage,
		)
	}

	d.logger.Debugw("Starting recognition",
		"source", source,
		"beam_size", d.decode.BeamSize,
		"best_of", d.decode.BestOf,
		"vad_filter", d.decode.VADFilter,
	)
	return d.model.Recognize(ctx, source, d.decode)
}

// TranscribeReduced is the single retry after a failed primary pass.
func (d *Driver) TranscribeReduced(
	ctx context.Context,
	source string,
) (Stream, SessionInfo, error) {
	opts := ReducedDecodeOptions()
	d.logger.Infow("Starting reduced-settings recognition",
		"source", source,
		"beam_size", opts.BeamSize,
		"best_of", opts.BestOf,
	)
	return d.model.Recognize(ctx, source, opts)
}
