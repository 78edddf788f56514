package token

import (
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/auth"
	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
	"github.com/spacenexus/spacetoken-server/pkg/pointer"
	"github.com/spacenexus/spacetoken-server/pkg/tokenadmin"
)

const maxRequestBodySize = 64 * 1024

type initializeRequest struct {
	auth.Header

	// Optional record address, derived from the mint when empty
	Token string `json:"token,omitempty"`
	// Optional payer, defaults to the authority
	Payer string `json:"payer,omitempty"`

	// Optional mint. When empty the ledger allocates one and the response
	// carries it.
	Mint      string `json:"mint,omitempty"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Uri       string `json:"uri"`
	Decimals  uint8  `json:"decimals"`
	Authority string `json:"authority"`
}

func (r *initializeRequest) toArgs() (*tokenadmin.CreateArgs, error) {
	var err error
	args := &tokenadmin.CreateArgs{
		Name:     r.Name,
		Symbol:   r.Symbol,
		Uri:      r.Uri,
		Decimals: r.Decimals,
	}
	if args.Address, err = parseOptionalKey("token", r.Token); err != nil {
		return nil, err
	}
	if args.Payer, err = parseOptionalKey("payer", r.Payer); err != nil {
		return nil, err
	}
	if args.Mint, err = parseOptionalKey("mint", r.Mint); err != nil {
		return nil, err
	}
	if args.Authority, err = parseKey("authority", r.Authority); err != nil {
		return nil, err
	}
	return args, nil
}

type mintRequest struct {
	auth.Header

	Token       string `json:"token"`
	Mint        string `json:"mint"`
	Destination string `json:"destination"`
	Authority   string `json:"authority"`
	Amount      uint64 `json:"amount,string"`
}

func (r *mintRequest) toArgs() (*tokenadmin.MintArgs, error) {
	var err error
	args := &tokenadmin.MintArgs{
		Amount: r.Amount,
	}
	if args.Token, err = parseKey("token", r.Token); err != nil {
		return nil, err
	}
	if args.Mint, err = parseKey("mint", r.Mint); err != nil {
		return nil, err
	}
	if args.Destination, err = parseKey("destination", r.Destination); err != nil {
		return nil, err
	}
	if args.Authority, err = parseKey("authority", r.Authority); err != nil {
		return nil, err
	}
	return args, nil
}

type updateMetadataRequest struct {
	auth.Header

	Token     string  `json:"token"`
	Authority string  `json:"authority"`
	Name      *string `json:"name,omitempty"`
	Symbol    *string `json:"symbol,omitempty"`
	Uri       *string `json:"uri,omitempty"`
}

func (r *updateMetadataRequest) toArgs() (*tokenadmin.UpdateMetadataArgs, error) {
	var err error
	args := &tokenadmin.UpdateMetadataArgs{
		Name:   r.Name,
		Symbol: r.Symbol,
		Uri:    r.Uri,
	}
	if args.Token, err = parseKey("token", r.Token); err != nil {
		return nil, err
	}
	if args.Authority, err = parseKey("authority", r.Authority); err != nil {
		return nil, err
	}
	return args, nil
}

type transferAuthorityRequest struct {
	auth.Header

	Token        string `json:"token"`
	Authority    string `json:"authority"`
	NewAuthority string `json:"new_authority"`
}

func (r *transferAuthorityRequest) toArgs() (*tokenadmin.TransferAuthorityArgs, error) {
	var err error
	args := &tokenadmin.TransferAuthorityArgs{}
	if args.Token, err = parseKey("token", r.Token); err != nil {
		return nil, err
	}
	if args.Authority, err = parseKey("authority", r.Authority); err != nil {
		return nil, err
	}
	if args.NewAuthority, err = parseKey("new_authority", r.NewAuthority); err != nil {
		return nil, err
	}
	return args, nil
}

type createAccountRequest struct {
	auth.Header

	Payer string `json:"payer"`
	Owner string `json:"owner"`
	Mint  string `json:"mint"`
}

type tokenView struct {
	Address   string `json:"address"`
	Mint      string `json:"mint,omitempty"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Uri       string `json:"uri"`
	Decimals  uint8  `json:"decimals"`
	Authority string `json:"authority"`
	Supply    uint64 `json:"supply,string"`
}

func newTokenView(record *tokenadmin.TokenRecord) *tokenView {
	return &tokenView{
		Address:   base58.Encode(record.Address),
		Name:      record.Name,
		Symbol:    record.Symbol,
		Uri:       record.Uri,
		Decimals:  record.Decimals,
		Authority: base58.Encode(record.Authority),
		Supply:    record.Supply,
	}
}

type eventView struct {
	Cursor       string    `json:"cursor"`
	EventId      string    `json:"event_id"`
	Type         string    `json:"type"`
	Token        string    `json:"token"`
	Mint         string    `json:"mint,omitempty"`
	Authority    string    `json:"authority"`
	Destination  *string   `json:"destination,omitempty"`
	Amount       *string   `json:"amount,omitempty"`
	Name         *string   `json:"name,omitempty"`
	Symbol       *string   `json:"symbol,omitempty"`
	Uri          *string   `json:"uri,omitempty"`
	NewAuthority *string   `json:"new_authority,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newEventView(record *event.Record) *eventView {
	view := &eventView{
		Cursor:       query.ToCursor(record.Id).ToBase58(),
		EventId:      record.EventId,
		Type:         record.EventType.String(),
		Token:        record.Token,
		Mint:         record.Mint,
		Authority:    record.Authority,
		Destination:  record.Destination,
		Name:         record.Name,
		Symbol:       record.Symbol,
		Uri:          record.Uri,
		NewAuthority: record.NewAuthority,
		CreatedAt:    record.CreatedAt,
	}
	if record.Amount != nil {
		view.Amount = pointer.String(strconv.FormatUint(*record.Amount, 10))
	}
	return view
}

type holderBucketView struct {
	Range string `json:"range"`
	Count uint64 `json:"count"`
}

type holdersView struct {
	TotalHolders uint64              `json:"total_holders"`
	Distribution []*holderBucketView `json:"distribution"`
}

func newHoldersView(distribution *tokenadmin.HolderDistribution) *holdersView {
	view := &holdersView{
		TotalHolders: distribution.Total,
	}
	for _, bucket := range distribution.Buckets {
		view.Distribution = append(view.Distribution, &holderBucketView{
			Range: bucket.Range,
			Count: bucket.Count,
		})
	}
	return view
}

func readSignedMessage(r *http.Request) (*auth.SignedMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxRequestBodySize {
		return nil, errors.New("request body too large")
	}

	var msg auth.SignedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, errors.New("request body is not a signed message")
	}
	return &msg, nil
}

func parseKey(name, value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("%s is not a public key", name)
	}
	return decoded, nil
}

func parseOptionalKey(name, value string) (ed25519.PublicKey, error) {
	if len(value) == 0 {
		return nil, nil
	}
	return parseKey(name, value)
}
