package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memObject struct {
	data        []byte
	contentType string
	public      bool
}

// Memory is an in-process store used for dry runs. It keeps uploads in a
// map and hands out the same URLs the real store would.
type Memory struct {
	mu      sync.Mutex
	objects map[string]*memObject
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]*memObject)}
}

func memKey(bucket, key string) string {
	return bucket + "/" + key
}

// Put seeds an object, e.g. a source video next to a manifest.
func (m *Memory) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memKey(bucket, key)] = &memObject{data: data}
}

func (m *Memory) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var objects []Object
	for k, obj := range m.objects {
		key, ok := strings.CutPrefix(k, bucket+"/")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		objects = append(objects, Object{Key: key, Size: int64(len(obj.data))})
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})
	return objects, nil
}

func (m *Memory) Upload(
	ctx context.Context,
	bucket, key string,
	data []byte,
	contentType string,
) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memKey(bucket, key)] = &memObject{data: buf, contentType: contentType}
	return Handle{Bucket: bucket, Key: key}, nil
}

func (m *Memory) MakePublic(ctx context.Context, h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[memKey(h.Bucket, h.Key)]
	if !ok {
		return fmt.Errorf("gs://%s/%s: %w", h.Bucket, h.Key, ErrNotFound)
	}
	obj.public = true
	return nil
}

func (m *Memory) PublicURL(h Handle) string {
	return PublicURL(h.Bucket, h.Key)
}

func (m *Memory) Stat(ctx context.Context, bucket, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[memKey(bucket, key)]
	if !ok {
		return Object{}, fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrNotFound)
	}
	return Object{Key: key, Size: int64(len(obj.data))}, nil
}

// Get returns a stored object's body and whether it was made public.
func (m *Memory) Get(bucket, key string) (data []byte, contentType string, public bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, found := m.objects[memKey(bucket, key)]
	if !found {
		return nil, "", false, false
	}
	return obj.data, obj.contentType, obj.public, true
}

// number of stored objects
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
