package advice

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/merkle"
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
		for i, seed := range []string{"advice-owner", "advice-other"} {
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
	spent utxo.Utxo
	stx   *utxo.SignedTransaction
	owner *utxo.Key
	other *utxo.Key
}

func newFixture(t *testing.T) fixture {
	owner, other := testKeys(t)
	s := utxo.NewState()
	require.NoError(t, s.Insert(utxo.NewUtxo(other.Owner, 5)))
	spent := utxo.NewUtxo(owner.Owner, 100)
	require.NoError(t, s.Insert(spent))

	stx, err := owner.Sign(utxo.Transaction{
		Input:   spent.Hash(),
		Outputs: []utxo.Utxo{utxo.NewUtxo(other.Owner, 10), utxo.NewUtxo(owner.Owner, 90)},
	})
	require.NoError(t, err)
	return fixture{state: s, spent: spent, stx: stx, owner: owner, other: other}
}

func TestMemProviderStackOrder(t *testing.T) {
	in := Inputs{}
	in.WithStack(field.NewFelt(1), field.NewFelt(2), field.NewFelt(3), field.NewFelt(4), field.NewFelt(5))
	p := NewMemProvider(in)

	w, err := p.PopStackWord()
	require.NoError(t, err)
	assert.Equal(t, field.NewWord(1, 2, 3, 4), w)

	p.PushStack(field.NewFelt(7), field.NewFelt(8))
	v, err := p.PopStack()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), v.Uint64())

	_, err = p.PopStackDWord()
	require.ErrorIs(t, err, ErrStackEmpty)
	assert.Equal(t, 2, p.StackLen())
}

func TestMemProviderMapAndStore(t *testing.T) {
	tree, err := merkle.NewTree([]field.Word{field.NewWord(1, 0, 0, 0), field.NewWord(2, 0, 0, 0)})
	require.NoError(t, err)
	store := merkle.NewStore()
	root := store.AddTree(tree)

	p := NewMemProvider(*(&Inputs{Store: store}).WithMap(root, []field.Felt{field.NewFelt(3)}))

	vals, err := p.GetMappedValues(root)
	require.NoError(t, err)
	assert.Len(t, vals, 1)
	_, err = p.GetMappedValues(field.NewWord(9, 9, 9, 9))
	require.ErrorIs(t, err, ErrMapKeyNotFound)

	node, err := p.GetTreeNode(root, merkle.NodeIndex{Depth: 1, Value: 1})
	require.NoError(t, err)
	assert.Equal(t, field.NewWord(2, 0, 0, 0), node)

	_, newRoot, err := p.UpdateMerkleNode(root, merkle.NodeIndex{Depth: 1, Value: 1}, field.ZeroWord)
	require.NoError(t, err)
	require.NoError(t, tree.UpdateLeaf(1, field.ZeroWord))
	assert.True(t, newRoot.Equal(tree.Root()))

	_, err = p.GetSignature(Falcon512, root, root)
	require.ErrorIs(t, err, ErrUnsupportedSignature)
}

func TestNewUtxoAdviceUnknownInput(t *testing.T) {
	f := newFixture(t)
	stx := *f.stx
	stx.Transaction.Input = field.NewWord(1, 2, 3, 4)
	_, err := NewUtxoAdvice(f.state, &stx)
	require.ErrorIs(t, err, ErrNoSuchInput)
}

func TestUtxoAdviceInitialAdvice(t *testing.T) {
	f := newFixture(t)
	a, err := NewUtxoAdvice(f.state, f.stx)
	require.NoError(t, err)

	// 4 + 5*2 = 14 elements, padded to 16, then the owner
	tx := f.stx.Transaction
	require.Equal(t, 16+4, a.StackLen())
	elems := tx.ToElements()
	for i := 0; i < 16; i++ {
		v, err := a.PopStack()
		require.NoError(t, err)
		if i < len(elems) {
			assert.Equal(t, elems[i], v, "element %d", i)
		} else {
			assert.True(t, v.IsZero(), "padding %d", i)
		}
	}
	owner, err := a.PopStackWord()
	require.NoError(t, err)
	assert.True(t, owner.Equal(f.owner.Owner))

	mapped, err := a.GetMappedValues(tx.Input)
	require.NoError(t, err)
	assert.Equal(t, f.spent.ToElements(), mapped)

	// every leaf of the pre-transition tree resolves through the store
	for i := uint64(0); i < utxo.MaxSize; i++ {
		leaf, err := a.GetTreeNode(f.state.Root(), merkle.NodeIndex{Depth: utxo.TreeDepth, Value: i})
		require.NoError(t, err)
		want, _ := f.state.Tree().Leaf(i)
		assert.True(t, leaf.Equal(want))
	}
}

func TestGetSignatureWitness(t *testing.T) {
	f := newFixture(t)
	a, err := NewUtxoAdvice(f.state, f.stx)
	require.NoError(t, err)
	msg := f.stx.Transaction.Hash()

	w, err := a.GetSignature(Falcon512, f.owner.Owner, msg)
	require.NoError(t, err)
	require.Len(t, w, WitnessLen)

	// the tail is the first nonce element
	sig := f.stx.Signature
	nonce := sig.NonceElements()
	assert.Equal(t, nonce[0], w[len(w)-1])
	assert.Equal(t, nonce[falcon.NonceElements-1], w[len(w)-falcon.NonceElements])

	// un-reverse and check the product against the ring relation
	for i, j := 0, len(w)-1; i < j; i, j = i+1, j-1 {
		w[i], w[j] = w[j], w[i]
	}
	off := falcon.NonceElements
	h, ok := falcon.PolynomialFromElements(w[off : off+falcon.N])
	require.True(t, ok)
	s2, ok := falcon.PolynomialFromElements(w[off+falcon.N : off+2*falcon.N])
	require.True(t, ok)
	assert.Equal(t, sig.PubKeyPoly(), h)
	assert.Equal(t, sig.SigPoly(), s2)

	var pi [falcon.ProductLen]uint64
	for i, e := range w[off+2*falcon.N:] {
		pi[i] = e.Uint64()
	}
	assert.Equal(t, h.Mul(&s2), falcon.ReduceNegacyclic(&pi))
}

func TestGetSignatureGates(t *testing.T) {
	f := newFixture(t)
	a, err := NewUtxoAdvice(f.state, f.stx)
	require.NoError(t, err)
	msg := f.stx.Transaction.Hash()

	cases := []struct {
		name   string
		kind   SignatureKind
		pubKey field.Word
		msg    field.Word
		want   error
	}{
		{"unsupported kind", SignatureKind(99), f.owner.Owner, msg, ErrUnsupportedSignature},
		{"unknown message", Falcon512, f.owner.Owner, field.NewWord(1, 1, 1, 1), ErrUnknownTransactionHash},
		{"foreign key", Falcon512, f.other.Owner, msg, ErrInvalidPublicKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := a.GetSignature(tc.kind, tc.pubKey, tc.msg)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, w)
			if tc.want != ErrUnsupportedSignature {
				require.ErrorIs(t, err, ErrFailedSignatureGeneration)
			}
		})
	}

	t.Run("unknown input utxo", func(t *testing.T) {
		delete(a.knownUtxos, f.stx.Transaction.Input.Key())
		_, err := a.GetSignature(Falcon512, f.owner.Owner, msg)
		require.ErrorIs(t, err, ErrUnknownInputUtxo)
	})
}

func TestUtxoAdviceIsSnapshot(t *testing.T) {
	f := newFixture(t)
	root := f.state.Root()
	a, err := NewUtxoAdvice(f.state, f.stx)
	require.NoError(t, err)

	require.NoError(t, f.state.ProcessTx(f.stx))

	// the advice still answers for the pre-transition root
	_, err = a.GetMerklePath(root, merkle.NodeIndex{Depth: utxo.TreeDepth, Value: 1})
	require.NoError(t, err)
	_, err = a.GetSignature(Falcon512, f.owner.Owner, f.stx.Transaction.Hash())
	require.NoError(t, err)
}
