package cache

import (
	"reflect"
	"testing"
	"time"
)

func TestEntryTouch(t *testing.T) {
	t.Parallel()

	entry := &Entry[string]{Key: "k", CreatedAt: at(0), LastAccessedAt: at(0), AccessCount: 1}
	entry.touch(at(time.Second))

	if entry.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", entry.AccessCount)
	}
	if !entry.LastAccessedAt.Equal(at(time.Second)) {
		t.Errorf("LastAccessedAt = %v, want %v", entry.LastAccessedAt, at(time.Second))
	}
}

func TestEntryExpired(t *testing.T) {
	t.Parallel()

	entry := &Entry[string]{CreatedAt: at(0)}
	ttl := time.Second

	if entry.expired(at(999*time.Millisecond), ttl) {
		t.Error("expired before ttl")
	}
	if !entry.expired(at(time.Second), ttl) {
		t.Error("not expired at exactly ttl")
	}
	if !entry.expired(at(time.Minute), ttl) {
		t.Error("not expired past ttl")
	}
}

func TestTagsFromKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key  string
		want []string
	}{
		{key: "hero:atk:total", want: []string{"hero", "atk", "total"}},
		{key: "plain", want: []string{"plain"}},
		{key: "trailing:", want: []string{"trailing"}},
		{key: "", want: []string{}},
	}
	for _, tc := range cases {
		if got := tagsFromKey(tc.key); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("tagsFromKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestEntryInfoSnapshotIsolated(t *testing.T) {
	t.Parallel()

	entry := &Entry[string]{Key: "a:b", Tags: []string{"a", "b"}}
	info := entry.info()
	info.Tags[0] = "mutated"

	if entry.Tags[0] != "a" {
		t.Error("snapshot shares the entry's tag slice")
	}
}
