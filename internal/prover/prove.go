// prove.go - Proving and verifying state transitions.
//
// Prove runs the transition program natively against the advice, then proves
// the signature relation it checked with Groth16 on BN254. The output carries
// the roots the program computed and what a verifier needs to rebuild the
// public inputs: the transaction hash, the nonce and the signer's key.

package prover

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"zkutxo/internal/advice"
	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/sponge"
)

// ProveOutput is a proven transition.
type ProveOutput struct {
	OldRoot   field.Word      `json:"old_root"`
	NewRoot   field.Word      `json:"new_root"`
	TxHash    field.Word      `json:"tx_hash"`
	Owner     field.Word      `json:"owner"`
	PublicKey field.HexString `json:"public_key"`
	Nonce     field.HexString `json:"nonce"`
	Proof     field.HexString `json:"proof"`
}

// Engine holds the compiled circuit and, once loaded, its keys.
type Engine struct {
	ccs    constraint.ConstraintSystem
	pkPath string
	vkPath string
	log    zerolog.Logger

	mu sync.Mutex
	pk groth16.ProvingKey
	vk groth16.VerifyingKey
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine compiles the circuit. Keys are read from (or set up and written
// to) pkPath and vkPath on first use.
func NewEngine(pkPath, vkPath string, opts ...Option) (*Engine, error) {
	e := &Engine{pkPath: pkPath, vkPath: vkPath, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	start := time.Now()
	ccs, err := CompileCircuit()
	if err != nil {
		return nil, errors.Wrap(err, "compile signature circuit")
	}
	e.ccs = ccs
	e.log.Debug().
		Int("constraints", ccs.GetNbConstraints()).
		Dur("took", time.Since(start)).
		Msg("circuit compiled")
	return e, nil
}

func (e *Engine) keys() (groth16.ProvingKey, groth16.VerifyingKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pk != nil && e.vk != nil {
		return e.pk, e.vk, nil
	}
	start := time.Now()
	pk, vk, err := SetupOrLoadKeys(e.ccs, e.pkPath, e.vkPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "proving keys")
	}
	e.log.Debug().Dur("took", time.Since(start)).Msg("proving keys ready")
	e.pk, e.vk = pk, vk
	return pk, vk, nil
}

// Prove executes the transition against host and proves it. host must be
// fresh: execution consumes its advice.
func (e *Engine) Prove(ctx context.Context, in StackInputs, host advice.Provider) (*ProveOutput, error) {
	var (
		exec *Execution
		pk   groth16.ProvingKey
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pk, _, err = e.keys()
		return err
	})
	g.Go(func() error {
		var err error
		exec, err = Execute(gctx, in, host)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := e.log.With().Str("tx_hash", exec.TxHash.String()).Logger()
	log.Info().
		Str("old_root", exec.OldRoot.String()).
		Str("new_root", exec.NewRoot.String()).
		Msg("transition executed")

	w, err := frontend.NewWitness(exec.Signature.Assignment(), curve.ScalarField())
	if err != nil {
		return nil, errors.Wrap(err, "witness")
	}
	start := time.Now()
	proof, err := groth16.Prove(e.ccs, pk, w)
	if err != nil {
		return nil, errors.Wrap(err, "groth16 prove")
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	log.Info().Dur("took", time.Since(start)).Msg("transition proven")

	return &ProveOutput{
		OldRoot:   exec.OldRoot,
		NewRoot:   exec.NewRoot,
		TxHash:    exec.TxHash,
		Owner:     exec.Owner,
		PublicKey: field.NewHexString(exec.Signature.H.Bytes()),
		Nonce:     field.NewHexString(nonceBytes(exec.Nonce)),
		Proof:     field.NewHexString(buf.Bytes()),
	}, nil
}

// Verify checks out's proof against the public inputs it implies.
func (e *Engine) Verify(out *ProveOutput) error {
	_, vk, err := e.keys()
	if err != nil {
		return err
	}

	raw, err := out.PublicKey.Bytes()
	if err != nil {
		return errors.Wrap(err, "public key")
	}
	h, err := falcon.PolynomialFromBytes(raw)
	if err != nil {
		return errors.Wrap(err, "public key")
	}
	if !sponge.HashElements(h.Elements()).Equal(out.Owner) {
		return errors.Wrap(ErrInvalidProof, "public key does not hash to owner")
	}
	raw, err = out.Nonce.Bytes()
	if err != nil {
		return errors.Wrap(err, "nonce")
	}
	nonce, err := nonceFromBytes(raw)
	if err != nil {
		return err
	}
	c := falcon.HashToPoint(out.TxHash, nonce)

	pw, err := frontend.NewWitness(PublicAssignment(&c, &h), curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return errors.Wrap(err, "public witness")
	}
	raw, err = out.Proof.Bytes()
	if err != nil {
		return errors.Wrap(err, "proof")
	}
	proof := groth16.NewProof(curve)
	if _, err := proof.ReadFrom(bytes.NewReader(raw)); err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	if err := groth16.Verify(proof, vk, pw); err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	return nil
}

func nonceBytes(nonce [falcon.NonceElements]field.Felt) []byte {
	out := make([]byte, 0, falcon.NonceElements*field.FeltBytes)
	for _, e := range nonce {
		out = append(out, field.FeltToBytes(e)...)
	}
	return out
}

func nonceFromBytes(b []byte) ([falcon.NonceElements]field.Felt, error) {
	var nonce [falcon.NonceElements]field.Felt
	if len(b) != len(nonce)*field.FeltBytes {
		return nonce, errors.Wrapf(field.ErrInvalidEncoding, "nonce is %d bytes", len(b))
	}
	for i := range nonce {
		e, err := field.FeltFromBytes(b[i*field.FeltBytes : (i+1)*field.FeltBytes])
		if err != nil {
			return nonce, errors.Wrap(err, "nonce")
		}
		nonce[i] = e
	}
	return nonce, nil
}
