package utxo

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
)

// Key is a spending key and the owner word it controls.
type Key struct {
	Pair  *falcon.KeyPair
	Owner field.Word
}

// GenerateKey creates a fresh key. A nil reader means crypto/rand.
func GenerateKey(r io.Reader) (*Key, error) {
	kp, err := falcon.GenerateKey(r)
	if err != nil {
		return nil, err
	}
	return &Key{Pair: kp, Owner: kp.Owner()}, nil
}

// Sign signs tx with this key.
func (k *Key) Sign(tx Transaction) (*SignedTransaction, error) {
	return Sign(tx, k.Pair)
}

type serializedKey struct {
	Pair  field.HexString `json:"pair"`
	Owner field.HexString `json:"owner"`
}

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(serializedKey{
		Pair:  field.NewHexString(k.Pair.Bytes()),
		Owner: field.NewHexString(k.Owner.Bytes()),
	})
}

// UnmarshalJSON decodes a key and checks that the owner word belongs to the pair.
func (k *Key) UnmarshalJSON(data []byte) error {
	var s serializedKey
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := s.Pair.Bytes()
	if err != nil {
		return errors.Wrap(err, "key pair")
	}
	kp, err := falcon.KeyPairFromBytes(raw)
	if err != nil {
		return err
	}
	owner, err := s.Owner.Word()
	if err != nil {
		return errors.Wrap(err, "owner")
	}
	if !owner.Equal(kp.Owner()) {
		return errors.Wrap(falcon.ErrInvalidEncoding, "owner does not match key pair")
	}
	*k = Key{Pair: kp, Owner: owner}
	return nil
}
