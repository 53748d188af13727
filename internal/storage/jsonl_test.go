package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"metadataWatch/internal/model"
)

func TestJsonlSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tasks.jsonl")
	sink := NewJsonlSink(path)

	first := []model.RefreshTask{
		{ContractID: "SP1.a", TokenClass: model.TokenClassFT, Emitter: "SP1.a", TxID: "0x01", BlockHeight: 10},
	}
	second := []model.RefreshTask{
		{ContractID: "SP1.b", TokenClass: model.TokenClassNFT, TokenIDs: []uint64{1, 2, 3}, Emitter: "SP1.b", TxID: "0x02", BlockHeight: 11},
	}

	if err := sink.PutTaskBatch(context.Background(), first); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := sink.PutTaskBatch(context.Background(), second); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var tasks []model.RefreshTask
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var task model.RefreshTask
		if err := json.Unmarshal(scanner.Bytes(), &task); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := append(first, second...)
	if !reflect.DeepEqual(tasks, want) {
		t.Fatalf("tasks mismatch: %+v != %+v", tasks, want)
	}
}

func TestJsonlSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	sink := NewJsonlSink(path)

	if err := sink.PutTaskBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch should not create the file")
	}
}

func TestJsonlRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.jsonl")
	sink := NewJsonlRejects(path)

	rejects := []model.DecodeError{
		{Emitter: "SP1.a", TxID: "0x01", EventIndex: 2, BlockHeight: 9, Error: "payload: missing token-class"},
	}
	if err := sink.PutRejectBatch(context.Background(), rejects); err != nil {
		t.Fatalf("put rejects: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var decoded model.DecodeError
	if err := json.Unmarshal(data[:len(data)-1], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, rejects[0]) {
		t.Fatalf("reject mismatch: %+v != %+v", decoded, rejects[0])
	}
}
