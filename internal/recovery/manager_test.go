package recovery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"codemend/internal/types"
)

func TestManagerSessionLifecycle(t *testing.T) {
	m := NewManager(testCoordinator(deterministicChain()), 2)

	s := m.StartSession("recipe-app")
	require.NotEmpty(t, s.ID)
	require.Equal(t, StatePending, s.State())

	got, ok := m.Session(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)

	m.CloseSession(s.ID)
	_, ok = m.Session(s.ID)
	require.False(t, ok)
}

func TestManagerRecoverUnknownSession(t *testing.T) {
	m := NewManager(testCoordinator(deterministicChain()), 2)
	_, err := m.Recover(context.Background(), "no-such-session", nil, nil)
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestManagerRecoverRunsSessions(t *testing.T) {
	m := NewManager(testCoordinator(deterministicChain()), 2)
	files := []types.SourceFile{{Path: "A.swift", Content: "struct A {}\n"}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		s := m.StartSession("app")
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			outcome, err := m.Recover(context.Background(), id, nil, files)
			if err != nil {
				t.Errorf("Recover: %v", err)
				return
			}
			if outcome.Status != StatusSucceeded {
				t.Errorf("Status = %s", outcome.Status)
			}
		}(s.ID)
	}
	wg.Wait()
}

func TestManagerRespectsCancelledContext(t *testing.T) {
	m := NewManager(testCoordinator(deterministicChain()), 1)
	s := m.StartSession("app")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Recover(ctx, s.ID, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}
