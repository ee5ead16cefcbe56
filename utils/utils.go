package utils

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ReadRoster parses an onet group definition file.
func ReadRoster(path string) (*onet.Roster, error) {
	file, err := os.Open(path)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}
	defer file.Close()
	group, err := app.ReadGroupDescToml(file)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}
	if len(group.Roster.List) == 0 {
		return nil, xerrors.Errorf("empty roster in %s", path)
	}
	return group.Roster, nil
}

// ParseAddress reads a 20-byte hex address, with or without 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, xerrors.Errorf("%s is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}

// ParseHash reads a 32-byte hex value, with or without 0x prefix.
func ParseHash(s string) (common.Hash, error) {
	buf, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return common.Hash{}, xerrors.Errorf("decoding %s: %v", s, err)
	}
	if len(buf) != common.HashLength {
		return common.Hash{}, xerrors.Errorf("hash must be %d bytes, got %d",
			common.HashLength, len(buf))
	}
	return common.BytesToHash(buf), nil
}

// SignerToHex serializes an ed25519 signer secret for the client config.
func SignerToHex(signer darc.Signer) (string, error) {
	if signer.Ed25519 == nil {
		return "", xerrors.New("not an ed25519 signer")
	}
	return encoding.ScalarToStringHex(cothority.Suite, signer.Ed25519.Secret)
}

// SignerFromHex rebuilds the signer from the stored secret.
func SignerFromHex(s string) (darc.Signer, error) {
	secret, err := encoding.StringHexToScalar(cothority.Suite, s)
	if err != nil {
		return darc.Signer{}, xerrors.Errorf("decoding secret: %v", err)
	}
	public := cothority.Suite.Point().Mul(secret, nil)
	return darc.NewSignerEd25519(public, secret), nil
}
