package repository

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

func TestAcquireReturnsSameSession(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	first, release := repo.Acquire(42)
	first.RecordDiagnosis("Eczema")
	release()

	second, release := repo.Acquire(42)
	defer release()

	if first.ID != second.ID {
		t.Errorf("expected the same session, got %s and %s", first.ID, second.ID)
	}
	if second.Diagnosis() != "Eczema" {
		t.Errorf("expected diagnosis to survive between turns, got %q", second.Diagnosis())
	}
}

func TestAcquireIsolatesChats(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	a, releaseA := repo.Acquire(1)
	b, releaseB := repo.Acquire(2)
	defer releaseA()
	defer releaseB()

	if a.ID == b.ID {
		t.Error("expected different chats to get different sessions")
	}
}

func TestAcquireReplacesExpiredSession(t *testing.T) {
	repo := NewSessionRepository(time.Millisecond)

	first, release := repo.Acquire(7)
	first.LoadImage(domain.NewImageRef([]byte("img"), "image/png"))
	release()

	time.Sleep(5 * time.Millisecond)

	second, release := repo.Acquire(7)
	defer release()

	if first.ID == second.ID {
		t.Error("expected an expired session to be replaced")
	}
	if second.Image() != nil {
		t.Error("expected the new session to start without an image")
	}
}

func TestClear(t *testing.T) {
	repo := NewSessionRepository(0)

	first, release := repo.Acquire(5)
	release()

	repo.Clear(5)

	second, release := repo.Acquire(5)
	defer release()

	if first.ID == second.ID {
		t.Error("expected a new session after clear")
	}
}

func TestAcquireSerializesTurns(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, release := repo.Acquire(9)
			defer release()
			state.BeginTurn()
			state.EndTurn()
		}()
	}
	wg.Wait()

	state, release := repo.Acquire(9)
	defer release()

	if state.TurnCount() != 50 {
		t.Errorf("expected 50 turns, got %d", state.TurnCount())
	}
}

func TestCount(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	for _, chatID := range []int64{1, 2, 3} {
		_, release := repo.Acquire(chatID)
		release()
	}

	if got := repo.Count(); got != 3 {
		t.Errorf("expected 3 sessions, got %d", got)
	}
}

func TestCountDoesNotSplitHeldSession(t *testing.T) {
	repo := NewSessionRepository(time.Nanosecond)

	var (
		inFlight atomic.Int32
		overlaps atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, release := repo.Acquire(11)
			if inFlight.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(10 * time.Microsecond)
			inFlight.Add(-1)
			release()
		}()
		go func() {
			defer wg.Done()
			repo.Count()
		}()
	}
	wg.Wait()

	if n := overlaps.Load(); n != 0 {
		t.Errorf("expected turns of one chat to never overlap, got %d overlaps", n)
	}
}
