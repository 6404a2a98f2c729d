package client

import (
	"context"
	"encoding/json"

	"github.com/alimasry/go-collab-state/collab"
)

// remoteList is a thin handle: reads come from the document mirror, writes
// go through the server round-trip.
type remoteList struct {
	doc *Document
	key string
}

func (l *remoteList) Key() string { return l.key }

func (l *remoteList) Len() int {
	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()
	return len(l.doc.state.Lists[l.key])
}

func (l *remoteList) Values() []json.RawMessage {
	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()
	return append([]json.RawMessage(nil), l.doc.state.Lists[l.key]...)
}

func (l *remoteList) Push(ctx context.Context, values ...json.RawMessage) error {
	return l.doc.submit(ctx, collab.Op{Object: l.key, List: &collab.ListOp{
		Kind: collab.ListPush, Values: values,
	}})
}

func (l *remoteList) Insert(ctx context.Context, i int, values ...json.RawMessage) error {
	return l.doc.submit(ctx, collab.Op{Object: l.key, List: &collab.ListOp{
		Kind: collab.ListInsert, Index: i, Values: values,
	}})
}

func (l *remoteList) Remove(ctx context.Context, i, count int) error {
	return l.doc.submit(ctx, collab.Op{Object: l.key, List: &collab.ListOp{
		Kind: collab.ListRemove, Index: i, Count: count,
	}})
}

func (l *remoteList) Set(ctx context.Context, i int, values ...json.RawMessage) error {
	return l.doc.submit(ctx, collab.Op{Object: l.key, List: &collab.ListOp{
		Kind: collab.ListSet, Index: i, Values: values,
	}})
}

func (l *remoteList) Move(ctx context.Context, from, to int) error {
	return l.doc.submit(ctx, collab.Op{Object: l.key, List: &collab.ListOp{
		Kind: collab.ListMove, Index: from, ToIndex: to,
	}})
}

func (l *remoteList) Subscribe(fn func(collab.ListEvent)) func() {
	return l.doc.subscribeList(l.key, fn)
}

// remoteString mirrors a shared string the same way.
type remoteString struct {
	doc *Document
	key string
}

func (s *remoteString) Key() string { return s.key }

func (s *remoteString) Text() string {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	return s.doc.state.Strings[s.key]
}

func (s *remoteString) InsertText(ctx context.Context, i int, text string) error {
	return s.doc.submit(ctx, collab.Op{Object: s.key, Text: &collab.TextOp{
		Kind: collab.TextOpInsert, Start: i, Value: text,
	}})
}

func (s *remoteString) RemoveText(ctx context.Context, start, end int) error {
	return s.doc.submit(ctx, collab.Op{Object: s.key, Text: &collab.TextOp{
		Kind: collab.TextOpRemove, Start: start, End: end,
	}})
}

func (s *remoteString) SetText(ctx context.Context, text string) error {
	return s.doc.submit(ctx, collab.Op{Object: s.key, Text: &collab.TextOp{
		Kind: collab.TextOpSet, Value: text,
	}})
}

func (s *remoteString) Subscribe(fn func(collab.TextEvent)) func() {
	return s.doc.subscribeText(s.key, fn)
}
