package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidClient holds the signing exchange client used for order actions.
type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient builds a signing client. accountAddr may differ from the key's
// address when an API wallet trades on behalf of a main account; when empty it is
// derived from the key.
func NewHyperliquidClient(privateKeyHex, baseURL, accountAddr string) (*HyperliquidClient, error) {
	key := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"), "0X")
	if key == "" {
		return nil, errors.New("empty private key")
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	if accountAddr == "" {
		pub, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, errors.New("error casting public key to ECDSA")
		}
		accountAddr = crypto.PubkeyToAddress(*pub).Hex()
	}

	// meta is fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func (c *HyperliquidClient) Exchange() *hyperliquid.Exchange { return c.exchange }
func (c *HyperliquidClient) AccountAddress() string          { return c.accountAddr }
