package prover

import (
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// CompileCircuit compiles SignatureCircuit to R1CS.
func CompileCircuit() (constraint.ConstraintSystem, error) {
	var circuit SignatureCircuit
	return frontend.Compile(curve.ScalarField(), r1cs.NewBuilder, &circuit)
}

func saveKey(path string, key io.WriterTo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.WriteTo(f)
	return err
}

func loadKey(path string, key io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.ReadFrom(f)
	return err
}

// LoadProvingKey loads a Groth16 proving key from disk.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	pk := groth16.NewProvingKey(curve)
	return pk, loadKey(path, pk)
}

// LoadVerifyingKey loads a Groth16 verifying key from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(curve)
	return vk, loadKey(path, vk)
}

// SetupOrLoadKeys loads the Groth16 keys for ccs if both exist on disk;
// otherwise it runs a fresh setup and saves the new keys.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(pkPath)
	vk, vkErr := LoadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := saveKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := saveKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}
