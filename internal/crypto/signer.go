package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Chain ids of the GRVT L2 environments used in the EIP-712 domain.
const (
	ChainIDProd    int64 = 325
	ChainIDTestnet int64 = 326
)

// Time-in-force codes as encoded in the signed order.
const (
	TIFGoodTillTime      uint8 = 1
	TIFAllOrNone         uint8 = 2
	TIFImmediateOrCancel uint8 = 3
	TIFFillOrKill        uint8 = 4
)

var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	orderLegType     = "OrderLeg(uint256 assetID,uint64 contractSize,uint64 limitPrice,bool isBuyingContract)"
	orderLegTypeHash = ethcrypto.Keccak256([]byte(orderLegType))

	orderTypeHash = ethcrypto.Keccak256([]byte(
		"Order(uint64 subAccountID,bool isMarket,uint8 timeInForce,bool postOnly,bool reduceOnly,OrderLeg[] legs,uint32 nonce,int64 expiration)" + orderLegType,
	))
)

// OrderLeg is one instrument leg of a signed order. ContractSize is scaled by
// the instrument's base decimals and LimitPrice by 1e9.
type OrderLeg struct {
	AssetID          *big.Int
	ContractSize     uint64
	LimitPrice       uint64
	IsBuyingContract bool
}

// OrderPayload is the struct signed for order creation.
type OrderPayload struct {
	SubAccountID uint64
	IsMarket     bool
	TimeInForce  uint8
	PostOnly     bool
	ReduceOnly   bool
	Legs         []OrderLeg
	Nonce        uint32
	Expiration   int64 // unix nanoseconds
}

// Signature is the signature block attached to an order.
type Signature struct {
	Signer     string `json:"signer"`
	R          string `json:"r"`
	S          string `json:"s"`
	V          int    `json:"v"`
	Expiration string `json:"expiration"`
	Nonce      uint32 `json:"nonce"`
}

// Signer signs GRVT orders with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte
}

// NewSigner creates a Signer from a hex-encoded private key for chainID.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		domainSep: ethcrypto.Keccak256(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte("GRVT Exchange")),
			ethcrypto.Keccak256([]byte("0")),
			uint256(big.NewInt(chainID)),
		),
	}, nil
}

// Address returns the signing address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignOrder signs o and returns the signature block.
func (s *Signer) SignOrder(o OrderPayload) (Signature, error) {
	digest := OrderDigest(s.domainSep, o)
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return Signature{}, fmt.Errorf("crypto/signer: signing: %w", err)
	}
	// go-ethereum returns v in {0,1}.
	return Signature{
		Signer:     s.address.Hex(),
		R:          "0x" + hex.EncodeToString(sig[:32]),
		S:          "0x" + hex.EncodeToString(sig[32:64]),
		V:          int(sig[64]) + 27,
		Expiration: fmt.Sprintf("%d", o.Expiration),
		Nonce:      o.Nonce,
	}, nil
}

// OrderDigest is keccak256("\x19\x01" || domainSep || hashStruct(o)).
func OrderDigest(domainSep []byte, o OrderPayload) []byte {
	legHashes := make([]byte, 0, 32*len(o.Legs))
	for _, leg := range o.Legs {
		legHashes = append(legHashes, ethcrypto.Keccak256(
			orderLegTypeHash,
			uint256(leg.AssetID),
			uint256(new(big.Int).SetUint64(leg.ContractSize)),
			uint256(new(big.Int).SetUint64(leg.LimitPrice)),
			boolWord(leg.IsBuyingContract),
		)...)
	}

	structHash := ethcrypto.Keccak256(
		orderTypeHash,
		uint256(new(big.Int).SetUint64(o.SubAccountID)),
		boolWord(o.IsMarket),
		uint256(big.NewInt(int64(o.TimeInForce))),
		boolWord(o.PostOnly),
		boolWord(o.ReduceOnly),
		ethcrypto.Keccak256(legHashes),
		uint256(big.NewInt(int64(o.Nonce))),
		uint256(big.NewInt(o.Expiration)),
	)
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
}

// uint256 returns the 32-byte big-endian word for a non-negative n.
func uint256(n *big.Int) []byte {
	if n == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(n.Bytes(), 32)
}

func boolWord(b bool) []byte {
	if b {
		return uint256(big.NewInt(1))
	}
	return uint256(nil)
}
