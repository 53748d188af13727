package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"metadataWatch/internal/model"
	"metadataWatch/internal/notify"
)

type fakeSource struct {
	latest   uint64
	events   map[uint64][]model.ContractEvent
	failures map[uint64]int
	mu       sync.Mutex
	fetched  []uint64
}

func (s *fakeSource) LatestBlockHeight(context.Context) (uint64, error) {
	return s.latest, nil
}

func (s *fakeSource) EventsByHeight(_ context.Context, height uint64) ([]model.ContractEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[height] > 0 {
		s.failures[height]--
		return nil, fmt.Errorf("transient fetch error")
	}
	s.fetched = append(s.fetched, height)
	return s.events[height], nil
}

type memoryRejects struct {
	rejects []model.DecodeError
}

func (s *memoryRejects) PutRejectBatch(_ context.Context, rejects []model.DecodeError) error {
	s.rejects = append(s.rejects, rejects...)
	return nil
}

func notificationEvent(emitter string, height uint64, payload string) model.ContractEvent {
	return model.ContractEvent{
		ContractID:  emitter,
		Topic:       "print",
		TxID:        fmt.Sprintf("0x%x", height),
		BlockHeight: height,
		Value:       json.RawMessage(`{"notification":"token-metadata-update","payload":` + payload + `}`),
	}
}

func TestBackfillerReplaysRange(t *testing.T) {
	source := &fakeSource{
		latest: 12,
		events: map[uint64][]model.ContractEvent{
			10: {notificationEvent("SP1.a", 10, `{"token-class":"ft","contract-id":"SP1.a"}`)},
			11: {notificationEvent("SP1.a", 11, `{"token-class":"sat","contract-id":"SP1.a"}`)},
			12: {notificationEvent("SP2.b", 12, `{"token-class":"nft","contract-id":"SP2.b","token-ids":[1,2,3]}`)},
		},
	}
	sink := &memorySink{}
	rejects := &memoryRejects{}

	b := NewBackfiller(BackfillConfig{
		FromHeight: 10,
		BatchSize:  2,
		Rejects:    rejects,
	}, source, notify.NewDecoder(notify.Config{}), sink, nil)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %+v", sink.tasks)
	}
	if sink.tasks[0].BlockHeight != 10 || sink.tasks[1].BlockHeight != 12 {
		t.Fatalf("task heights mismatch: %+v", sink.tasks)
	}
	if len(rejects.rejects) != 1 || rejects.rejects[0].BlockHeight != 11 {
		t.Fatalf("expected one reject at height 11, got %+v", rejects.rejects)
	}
}

func TestBackfillerResumesFromCheckpoint(t *testing.T) {
	source := &fakeSource{
		latest: 5,
		events: map[uint64][]model.ContractEvent{},
	}
	sink := &memorySink{}
	checkpoint := &FileCheckpoint{Path: t.TempDir() + "/checkpoint.json"}
	if err := checkpoint.Save(context.Background(), 3); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	b := NewBackfiller(BackfillConfig{
		FromHeight: 1,
		ToHeight:   5,
		BatchSize:  10,
		Checkpoint: checkpoint,
	}, source, notify.NewDecoder(notify.Config{}), sink, nil)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []uint64{4, 5}
	if len(source.fetched) != len(want) {
		t.Fatalf("fetched heights mismatch: %v", source.fetched)
	}
	for i, h := range want {
		if source.fetched[i] != h {
			t.Fatalf("fetched heights mismatch: %v", source.fetched)
		}
	}

	last, ok, err := checkpoint.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load checkpoint: %v %v", ok, err)
	}
	if last != 5 {
		t.Fatalf("checkpoint should advance to 5, got %d", last)
	}
}

func TestBackfillerRetriesTransientFailures(t *testing.T) {
	source := &fakeSource{
		latest: 1,
		events: map[uint64][]model.ContractEvent{
			1: {notificationEvent("SP1.a", 1, `{"token-class":"ft","contract-id":"SP1.a"}`)},
		},
		failures: map[uint64]int{1: 2},
	}
	sink := &memorySink{}

	b := NewBackfiller(BackfillConfig{
		FromHeight:   1,
		ToHeight:     1,
		BatchSize:    1,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, source, notify.NewDecoder(notify.Config{}), sink, nil)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(sink.tasks))
	}
}

func TestBackfillerExhaustsRetries(t *testing.T) {
	source := &fakeSource{
		latest:   1,
		events:   map[uint64][]model.ContractEvent{},
		failures: map[uint64]int{1: 10},
	}
	sink := &memorySink{}

	b := NewBackfiller(BackfillConfig{
		FromHeight:   1,
		ToHeight:     1,
		BatchSize:    1,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, source, notify.NewDecoder(notify.Config{}), sink, nil)

	if err := b.Run(context.Background()); err == nil {
		t.Fatalf("expected error after retries exhausted")
	}
}
