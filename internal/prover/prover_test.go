package prover

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkutxo/internal/advice"
	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/utxo"
)

var (
	keysOnce sync.Once
	keys     [2]*utxo.Key
	keysErr  error
)

func testKeys(t *testing.T) (*utxo.Key, *utxo.Key) {
	t.Helper()
	keysOnce.Do(func() {
		for i, seed := range []string{"prover-alice", "prover-bob"} {
			keys[i], keysErr = utxo.GenerateKey(falcon.NewSeededReader([]byte(seed)))
			if keysErr != nil {
				return
			}
		}
	})
	require.NoError(t, keysErr)
	return keys[0], keys[1]
}

type fixture struct {
	state *utxo.State
	stx   *utxo.SignedTransaction
	alice *utxo.Key
	bob   *utxo.Key
}

// newFixture returns a state holding a coin of bob's and two identical coins
// of alice's, and a signed split of alice's coin.
func newFixture(t *testing.T) fixture {
	alice, bob := testKeys(t)
	s := utxo.NewState()
	coin := utxo.NewUtxo(alice.Owner, 100)
	require.NoError(t, s.Insert(utxo.NewUtxo(bob.Owner, 7)))
	require.NoError(t, s.Insert(coin))
	require.NoError(t, s.Insert(coin))

	stx, err := alice.Sign(utxo.Transaction{
		Input: coin.Hash(),
		Outputs: []utxo.Utxo{
			utxo.NewUtxo(bob.Owner, 30),
			utxo.NewUtxo(alice.Owner, 60),
		},
	})
	require.NoError(t, err)
	return fixture{state: s, stx: stx, alice: alice, bob: bob}
}

func (f fixture) execute(t *testing.T, host advice.Provider) (*Execution, error) {
	t.Helper()
	return Execute(context.Background(), PrepareStackInputs(f.state, &f.stx.Transaction), host)
}

func (f fixture) bridge(t *testing.T) *advice.UtxoAdvice {
	t.Helper()
	a, err := advice.NewUtxoAdvice(f.state, f.stx)
	require.NoError(t, err)
	return a
}

// forgedSignature serves a witness edited by tamper.
type forgedSignature struct {
	*advice.UtxoAdvice
	tamper func(w []field.Felt)
}

func (f *forgedSignature) GetSignature(kind advice.SignatureKind, pubKey, msg field.Word) ([]field.Felt, error) {
	w, err := f.UtxoAdvice.GetSignature(kind, pubKey, msg)
	if err != nil {
		return nil, err
	}
	f.tamper(w)
	return w, nil
}

// witnessIndex maps a position in nonce | h | s2 | pi to its place in the
// reversed witness.
func witnessIndex(i int) int { return advice.WitnessLen - 1 - i }

func TestPrepareStackInputs(t *testing.T) {
	f := newFixture(t)
	in := PrepareStackInputs(f.state, &f.stx.Transaction)
	assert.Equal(t, uint64(4+5*2), in.TxSize)
	assert.Equal(t, uint64(16), in.paddedSize())

	e := in.Elements()
	require.Len(t, e, 9)
	root := f.state.Root()
	assert.Equal(t, root[:], e[:4])
	assert.Equal(t, uint64(14), e[8].Uint64())
}

func TestExecuteMatchesProcessTx(t *testing.T) {
	f := newFixture(t)
	oldRoot := f.state.Root()
	exec, err := f.execute(t, f.bridge(t))
	require.NoError(t, err)

	require.NoError(t, f.state.ProcessTx(f.stx))
	assert.True(t, exec.OldRoot.Equal(oldRoot))
	assert.True(t, exec.NewRoot.Equal(f.state.Root()))
	assert.True(t, exec.Owner.Equal(f.alice.Owner))
	assert.Equal(t, f.stx.Signature.NonceElements(), exec.Nonce)

	// the duplicate at leaf 2 survives; the outputs took leaves 1 and 3
	leaves := f.state.Tree().Leaves()
	assert.True(t, leaves[1].Equal(f.stx.Transaction.Outputs[0].Hash()))
	assert.True(t, leaves[2].Equal(f.stx.Transaction.Input))
	assert.True(t, leaves[3].Equal(f.stx.Transaction.Outputs[1].Hash()))
}

func TestExecuteBurn(t *testing.T) {
	f := newFixture(t)
	stx, err := f.alice.Sign(utxo.Transaction{Input: f.stx.Transaction.Input})
	require.NoError(t, err)
	f.stx = stx

	exec, err := f.execute(t, f.bridge(t))
	require.NoError(t, err)
	require.NoError(t, f.state.ProcessTx(stx))
	assert.True(t, exec.NewRoot.Equal(f.state.Root()))
}

func TestExecuteRejectsForgedAdvice(t *testing.T) {
	f := newFixture(t)

	t.Run("foreign transaction on the stack", func(t *testing.T) {
		other := f.stx.Transaction
		other.Outputs = append([]utxo.Utxo(nil), other.Outputs...)
		other.Outputs[0] = utxo.NewUtxo(f.bob.Owner, 31)
		in := (&advice.Inputs{}).WithStack(advice.PaddedElements(other.ToElements())...)
		_, err := f.execute(t, advice.NewMemProvider(*in))
		require.ErrorIs(t, err, ErrTxHashMismatch)
	})

	t.Run("spent utxo does not match input", func(t *testing.T) {
		a := f.bridge(t)
		a.InsertIntoMap(f.stx.Transaction.Input, utxo.NewUtxo(f.alice.Owner, 1000).ToElements())
		_, err := f.execute(t, a)
		require.ErrorIs(t, err, ErrProgramFailed)
		require.ErrorIs(t, err, utxo.ErrInvalidInputHash)
	})

	t.Run("tampered s2", func(t *testing.T) {
		h := &forgedSignature{UtxoAdvice: f.bridge(t), tamper: func(w []field.Felt) {
			i := witnessIndex(falcon.NonceElements + falcon.N)
			w[i] = field.NewFelt((w[i].Uint64() + 1) % falcon.Q)
		}}
		_, err := f.execute(t, h)
		require.ErrorIs(t, err, utxo.ErrInvalidSignature)
	})

	t.Run("tampered product", func(t *testing.T) {
		h := &forgedSignature{UtxoAdvice: f.bridge(t), tamper: func(w []field.Felt) {
			i := witnessIndex(falcon.NonceElements + 2*falcon.N + 3)
			w[i] = field.NewFelt(w[i].Uint64() + falcon.Q)
		}}
		_, err := f.execute(t, h)
		require.ErrorIs(t, err, utxo.ErrInvalidSignature)
	})

	t.Run("tampered nonce", func(t *testing.T) {
		h := &forgedSignature{UtxoAdvice: f.bridge(t), tamper: func(w []field.Felt) {
			i := witnessIndex(0)
			w[i] = field.NewFelt(w[i].Uint64() ^ 1)
		}}
		_, err := f.execute(t, h)
		require.ErrorIs(t, err, utxo.ErrInvalidSignature)
	})
}

func TestExecuteRejectsBadTxSize(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		size uint64
	}{
		{"zero", 0},
		{"shorter than a word", 3},
		{"partial output", 4 + 5 + 2},
		{"more outputs than slots", maxTxSize + 5},
		{"huge", 1 << 40},
		{"max uint64", ^uint64(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := PrepareStackInputs(f.state, &f.stx.Transaction)
			in.TxSize = tc.size
			_, err := Execute(context.Background(), in, f.bridge(t))
			require.ErrorIs(t, err, ErrTxHashMismatch)
			require.ErrorIs(t, err, ErrProgramFailed)
		})
	}
}

func TestExecuteRejectsInvalidTransitions(t *testing.T) {
	f := newFixture(t)

	t.Run("excessive output", func(t *testing.T) {
		stx, err := f.alice.Sign(utxo.Transaction{
			Input:   f.stx.Transaction.Input,
			Outputs: []utxo.Utxo{utxo.NewUtxo(f.bob.Owner, 101)},
		})
		require.NoError(t, err)
		g := f
		g.stx = stx
		_, err = g.execute(t, g.bridge(t))
		require.ErrorIs(t, err, utxo.ErrExcessiveOutput)
	})

	t.Run("signed by someone else", func(t *testing.T) {
		stx, err := f.bob.Sign(f.stx.Transaction)
		require.NoError(t, err)
		g := f
		g.stx = stx
		_, err = g.execute(t, g.bridge(t))
		require.ErrorIs(t, err, utxo.ErrInvalidSignature)
	})

	t.Run("not enough room", func(t *testing.T) {
		s := f.state.Clone()
		for s.Free() > 0 {
			require.NoError(t, s.Insert(utxo.NewUtxo(f.bob.Owner, 1)))
		}
		outs := []utxo.Utxo{utxo.NewUtxo(f.bob.Owner, 1), utxo.NewUtxo(f.bob.Owner, 2)}
		stx, err := f.alice.Sign(utxo.Transaction{Input: f.stx.Transaction.Input, Outputs: outs})
		require.NoError(t, err)
		g := fixture{state: s, stx: stx, alice: f.alice, bob: f.bob}
		_, err = g.execute(t, g.bridge(t))
		require.ErrorIs(t, err, utxo.ErrFull)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Execute(ctx, PrepareStackInputs(f.state, &f.stx.Transaction), f.bridge(t))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestSignatureCircuit(t *testing.T) {
	f := newFixture(t)
	exec, err := f.execute(t, f.bridge(t))
	require.NoError(t, err)
	sw := exec.Signature

	var circuit SignatureCircuit
	require.NoError(t, test.IsSolved(&circuit, sw.Assignment(), curve.ScalarField()))

	t.Run("other message", func(t *testing.T) {
		bad := *sw
		bad.C = falcon.HashToPoint(field.NewWord(1, 2, 3, 4), exec.Nonce)
		assert.Error(t, test.IsSolved(&circuit, bad.Assignment(), curve.ScalarField()))
	})

	t.Run("other public key", func(t *testing.T) {
		a := sw.Assignment()
		a.H[0] = (uint64(sw.H[0]) + 1) % falcon.Q
		assert.Error(t, test.IsSolved(&circuit, a, curve.ScalarField()))
	})

	t.Run("product off by one", func(t *testing.T) {
		a := sw.Assignment()
		a.Pi[5] = sw.Pi[5] + 1
		assert.Error(t, test.IsSolved(&circuit, a, curve.ScalarField()))
	})
}

func TestEngineProveVerify(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	f := newFixture(t)
	dir := t.TempDir()
	pkPath, vkPath := filepath.Join(dir, "keys", "sig.pk"), filepath.Join(dir, "keys", "sig.vk")

	e, err := NewEngine(pkPath, vkPath)
	require.NoError(t, err)
	out, err := e.Prove(context.Background(), PrepareStackInputs(f.state, &f.stx.Transaction), f.bridge(t))
	require.NoError(t, err)
	require.NoError(t, e.Verify(out))

	require.NoError(t, f.state.ProcessTx(f.stx))
	assert.True(t, out.NewRoot.Equal(f.state.Root()))

	// a second engine loads the keys written by the first
	e2, err := NewEngine(pkPath, vkPath)
	require.NoError(t, err)
	data, err := json.Marshal(out)
	require.NoError(t, err)
	var decoded ProveOutput
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, e2.Verify(&decoded))

	t.Run("other transaction hash", func(t *testing.T) {
		bad := decoded
		bad.TxHash = field.NewWord(1, 2, 3, 4)
		require.ErrorIs(t, e2.Verify(&bad), ErrInvalidProof)
	})

	t.Run("other owner", func(t *testing.T) {
		bad := decoded
		bad.Owner = f.bob.Owner
		require.ErrorIs(t, e2.Verify(&bad), ErrInvalidProof)
	})
}
