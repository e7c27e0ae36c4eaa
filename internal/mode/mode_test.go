package mode

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlags(t *testing.T) {
	f := NewFlags()
	assert.Equal(t, Status{Default: true}, f.Snapshot())
	assert.True(t, f.Enabled(Default))
	for _, name := range Toggleable {
		assert.False(t, f.Enabled(name), name)
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	f := NewFlags()

	s, err := f.Toggle(Left)
	require.NoError(t, err)
	assert.Equal(t, Status{Left: true}, s)

	s, err = f.Toggle(Left)
	require.NoError(t, err)
	assert.Equal(t, Status{Default: true}, s)
}

func TestToggleRejects(t *testing.T) {
	f := NewFlags()
	_, err := f.Toggle(Reverse)
	require.NoError(t, err)

	for _, name := range []Name{Default, "", "blink"} {
		s, err := f.Toggle(name)
		assert.True(t, errors.Is(err, ErrUnknownMode), "%q: %v", name, err)
		assert.Equal(t, Status{Reverse: true}, s)
	}
	assert.Equal(t, Status{Reverse: true}, f.Snapshot())
}

func TestToggleSequenceKeepsDefaultDerived(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	f := NewFlags()
	prev := f.Snapshot()

	for i := 0; i < 1000; i++ {
		name := Toggleable[rng.Intn(len(Toggleable))]
		s, err := f.Toggle(name)
		require.NoError(t, err)

		for _, other := range Toggleable {
			if other == name {
				assert.NotEqual(t, prev.Get(other), s.Get(other))
			} else {
				assert.Equal(t, prev.Get(other), s.Get(other))
			}
		}
		assert.Equal(t, !(s.Reverse || s.Intermittent || s.Left || s.Right || s.Stop), s.Default)
		prev = s
	}
}

func TestConcurrentToggleAndRead(t *testing.T) {
	f := NewFlags()

	var wg sync.WaitGroup
	for _, name := range Toggleable {
		wg.Add(1)
		go func(name Name) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				f.Toggle(name)
			}
		}(name)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			s := f.Snapshot()
			if s.Default == (s.Reverse || s.Intermittent || s.Left || s.Right || s.Stop) {
				t.Errorf("torn snapshot: %v", s)
				return
			}
		}
	}()

	wg.Wait()
	<-done

	// Every mode was toggled an even number of times.
	assert.Equal(t, Status{Default: true}, f.Snapshot())
}

func TestParseName(t *testing.T) {
	n, err := ParseName("intermittent")
	require.NoError(t, err)
	assert.Equal(t, Intermittent, n)

	_, err = ParseName("hazard")
	assert.True(t, errors.Is(err, ErrUnknownMode))
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(Status{Default: true})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"default":true,"reverse":false,"intermittent":false,"left":false,"right":false,"stop":false}`,
		string(b))

	b, err = json.Marshal(Status{Intermittent: true, Right: true})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"default":false,"reverse":false,"intermittent":true,"left":false,"right":true,"stop":false}`,
		string(b))
}
