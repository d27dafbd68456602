package webtask

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondInto(disp *Disposition, cred **Credential) func(Disposition, *Credential) {
	return func(d Disposition, c *Credential) {
		*disp = d
		if cred != nil {
			*cred = c
		}
	}
}

func TestRegistry_UnknownIDAnswersDefault(t *testing.T) {
	reg := NewRegistry()

	var disp Disposition = DispositionCancel
	reg.HandleChallenge(42, &Challenge{Scheme: "Basic"}, respondInto(&disp, nil))

	assert.Equal(t, DispositionDefault, disp, "unknown operations must get default handling")
}

func TestRegistry_LastWriteWins(t *testing.T) {
	reg := NewRegistry()
	a := New(newStubSession(), Fetch, nil)
	b := New(newStubSession(), Fetch, nil)

	reg.Register(1, a)
	reg.Register(1, b)

	got, ok := reg.Lookup(1)
	require.True(t, ok)
	assert.Same(t, b, got)

	reg.Remove(1)
	reg.Remove(1) // no-op for absent ids
	_, ok = reg.Lookup(1)
	assert.False(t, ok)
}

func TestTask_NoAuthHandlerDefaults(t *testing.T) {
	sess := newStubSession()
	task := New(sess, Fetch, nil)
	task.Resume()

	var disp Disposition = DispositionCancel
	sess.registry.HandleChallenge(sess.lastOperation().ID(), &Challenge{Scheme: "Basic"}, respondInto(&disp, nil))

	assert.Equal(t, DispositionDefault, disp)
}

func TestTask_BasicChallengeHonorsRetryCap(t *testing.T) {
	sess := newStubSession()
	sess.maxRetries = 2

	invocations := 0
	task := New(sess, Fetch, nil)
	task.Authenticate(func(ch *Challenge) (Disposition, *Credential, error) {
		invocations++
		return DispositionUseCredential, &Credential{Username: "u", Password: "p"}, nil
	})
	task.Resume()
	id := sess.lastOperation().ID()

	dispositions := make([]Disposition, 0, 3)
	for i := 0; i < 3; i++ {
		var disp Disposition
		var cred *Credential
		sess.registry.HandleChallenge(id, &Challenge{Scheme: "Basic", PriorFailures: i}, respondInto(&disp, &cred))
		dispositions = append(dispositions, disp)
	}

	assert.Equal(t, 2, invocations, "attempts beyond the cap must not reach the handler")
	assert.Equal(t, []Disposition{DispositionUseCredential, DispositionUseCredential, DispositionDefault}, dispositions)
}

func TestTask_LowercaseBasicSchemeHonorsRetryCap(t *testing.T) {
	sess := newStubSession()
	sess.maxRetries = 1

	invocations := 0
	task := New(sess, Fetch, nil)
	task.Authenticate(func(ch *Challenge) (Disposition, *Credential, error) {
		invocations++
		return DispositionUseCredential, &Credential{Username: "u", Password: "p"}, nil
	})
	task.Resume()
	id := sess.lastOperation().ID()

	var disp Disposition
	sess.registry.HandleChallenge(id, &Challenge{Scheme: "basic"}, respondInto(&disp, nil))
	assert.Equal(t, DispositionUseCredential, disp)
	sess.registry.HandleChallenge(id, &Challenge{Scheme: "basic"}, respondInto(&disp, nil))
	assert.Equal(t, DispositionDefault, disp, "scheme comparison is case-insensitive")
	assert.Equal(t, 1, invocations)
}

func TestTask_DefaultSchemeSharesRetryCap(t *testing.T) {
	sess := newStubSession()
	sess.maxRetries = 1

	invocations := 0
	task := New(sess, Fetch, nil)
	task.Authenticate(func(ch *Challenge) (Disposition, *Credential, error) {
		invocations++
		return DispositionUseCredential, &Credential{}, nil
	})
	task.Resume()
	id := sess.lastOperation().ID()

	var disp Disposition
	sess.registry.HandleChallenge(id, &Challenge{}, respondInto(&disp, nil))
	assert.Equal(t, DispositionUseCredential, disp)
	sess.registry.HandleChallenge(id, &Challenge{}, respondInto(&disp, nil))
	assert.Equal(t, DispositionDefault, disp)
	assert.Equal(t, 1, invocations)
}

func TestTask_OtherSchemeIgnoresRetryCap(t *testing.T) {
	sess := newStubSession()
	sess.maxRetries = 1

	invocations := 0
	task := New(sess, Fetch, nil)
	task.Authenticate(func(ch *Challenge) (Disposition, *Credential, error) {
		invocations++
		return DispositionUseCredential, &Credential{Username: "u", Password: "p"}, nil
	})
	task.Resume()
	id := sess.lastOperation().ID()

	for i := 0; i < 3; i++ {
		var disp Disposition
		sess.registry.HandleChallenge(id, &Challenge{Scheme: "Digest"}, respondInto(&disp, nil))
		assert.Equal(t, DispositionUseCredential, disp)
	}
	assert.Equal(t, 3, invocations, "non-basic schemes always reach the handler")
}

func TestTask_UnlimitedRetriesWhenCapIsZero(t *testing.T) {
	sess := newStubSession()
	sess.maxRetries = 0

	invocations := 0
	task := New(sess, Fetch, nil)
	task.Authenticate(func(ch *Challenge) (Disposition, *Credential, error) {
		invocations++
		return DispositionUseCredential, &Credential{}, nil
	})
	task.Resume()
	id := sess.lastOperation().ID()

	for i := 0; i < 5; i++ {
		var disp Disposition
		sess.registry.HandleChallenge(id, &Challenge{Scheme: "Basic"}, respondInto(&disp, nil))
		assert.Equal(t, DispositionUseCredential, disp)
	}
	assert.Equal(t, 5, invocations)
}

func TestTask_AuthHandlerErrorShortCircuitsPipeline(t *testing.T) {
	sess := newStubSession()
	authErr := errors.New("credentials rejected by policy")

	var responseRan bool
	var seen error
	task := New(sess, Fetch, nil)
	task.Authenticate(func(ch *Challenge) (Disposition, *Credential, error) {
		return DispositionCancel, nil, authErr
	})
	task.Response(func(body []byte, resp *Response) error {
		responseRan = true
		return nil
	})
	task.ResponseError(func(err error) { seen = err })
	task.Resume()
	id := sess.lastOperation().ID()

	var disp Disposition
	sess.registry.HandleChallenge(id, &Challenge{Scheme: "Basic"}, respondInto(&disp, nil))
	assert.Equal(t, DispositionCancel, disp)

	// The transport delivers its terminal callback after the cancel.
	sess.lastOperation().fire(nil, "", nil)
	task.pipe.wait()

	assert.False(t, responseRan, "auth failure suppresses response handlers")
	assert.Same(t, authErr, seen)
}
