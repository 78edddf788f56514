package token

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/auth"
	memory_event "github.com/spacenexus/spacetoken-server/pkg/data/event/memory"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
	"github.com/spacenexus/spacetoken-server/pkg/ledger/local"
	"github.com/spacenexus/spacetoken-server/pkg/pointer"
	memory_runtime "github.com/spacenexus/spacetoken-server/pkg/runtime/memory"
	"github.com/spacenexus/spacetoken-server/pkg/solana/spacetoken"
	"github.com/spacenexus/spacetoken-server/pkg/testutil"
	"github.com/spacenexus/spacetoken-server/pkg/tokenadmin"
)

type testEnv struct {
	server *httptest.Server

	authority    ed25519.PublicKey
	authorityKey ed25519.PrivateKey
	mint         ed25519.PublicKey
	token        ed25519.PublicKey
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	testutil.DisableLogging(t)

	rt := memory_runtime.New()
	tokenLedger := local.New(rt)
	admin := tokenadmin.New(rt, tokenLedger, memory_event.New(), tokenadmin.WithEnvConfigs())

	router := chi.NewRouter()
	NewTokenServer(admin, tokenLedger, withManualTestOverrides(overrides)).RegisterRoutes(router)

	env := &testEnv{
		server: httptest.NewServer(router),
		mint:   testutil.NewRandomAccount(t),
	}
	t.Cleanup(env.server.Close)

	env.authority, env.authorityKey = testutil.NewRandomKeyPair(t)

	var err error
	env.token, _, err = spacetoken.GetSpaceTokenAddress(&spacetoken.GetSpaceTokenAddressArgs{Mint: env.mint})
	require.NoError(t, err)

	return env
}

func (e *testEnv) post(t *testing.T, path string, payload interface{}, keys ...ed25519.PrivateKey) (int, *testResponse) {
	msg, err := auth.Sign(payload, keys...)
	require.NoError(t, err)

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	return e.do(t, http.MethodPost, path, bytes.NewReader(body))
}

func (e *testEnv) get(t *testing.T, path string, params url.Values) (int, *testResponse) {
	return e.do(t, http.MethodGet, path+"?"+params.Encode(), nil)
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Reader) (int, *testResponse) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequest(method, e.server.URL+path, nil)
	} else {
		req, err = http.NewRequest(method, e.server.URL+path, body)
	}
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, jsonContentTypeHeaderValue, resp.Header.Get(contentTypeHeaderName))

	var decoded testResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, resp.StatusCode == http.StatusOK, decoded.Success)
	if !decoded.Success {
		assert.NotEmpty(t, decoded.Message)
	}
	return resp.StatusCode, &decoded
}

func (e *testEnv) header() auth.Header {
	return auth.Header{Timestamp: time.Now().Unix()}
}

func (e *testEnv) initialize(t *testing.T) *tokenView {
	statusCode, resp := e.post(t, v1InitializePath, &initializeRequest{
		Header:    e.header(),
		Mint:      base58.Encode(e.mint),
		Name:      "Space Token",
		Symbol:    "SPACE",
		Uri:       "https://spacenexus.io/token.json",
		Decimals:  6,
		Authority: base58.Encode(e.authority),
	}, e.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	var view tokenView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	return &view
}

func (e *testEnv) createTokenAccount(t *testing.T) string {
	statusCode, resp := e.post(t, v1CreateTokenAccountPath, &createAccountRequest{
		Header: e.header(),
		Payer:  base58.Encode(e.authority),
		Owner:  base58.Encode(testutil.NewRandomAccount(t)),
		Mint:   base58.Encode(e.mint),
	}, e.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data["address"]
}

func (e *testEnv) mintTo(t *testing.T, destination string, amount uint64, key ed25519.PrivateKey) (int, *testResponse) {
	return e.post(t, v1MintPath, &mintRequest{
		Header:      e.header(),
		Token:       base58.Encode(e.token),
		Mint:        base58.Encode(e.mint),
		Destination: destination,
		Authority:   base58.Encode(key.Public().(ed25519.PublicKey)),
		Amount:      amount,
	}, key)
}

func (e *testEnv) getInfo(t *testing.T) *tokenView {
	statusCode, resp := e.get(t, v1GetInfoPath, url.Values{"token": {base58.Encode(e.token)}})
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	var view tokenView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	return &view
}

func TestInitialize(t *testing.T) {
	env := setup(t, &testOverrides{})

	view := env.initialize(t)
	assert.Equal(t, base58.Encode(env.token), view.Address)
	assert.Equal(t, "Space Token", view.Name)
	assert.Equal(t, "SPACE", view.Symbol)
	assert.EqualValues(t, 6, view.Decimals)
	assert.Equal(t, base58.Encode(env.authority), view.Authority)
	assert.EqualValues(t, 0, view.Supply)
	assert.Equal(t, base58.Encode(env.mint), view.Mint)

	view.Mint = ""
	assert.Equal(t, view, env.getInfo(t))

	statusCode, resp := env.post(t, v1InitializePath, &initializeRequest{
		Header:    env.header(),
		Mint:      base58.Encode(env.mint),
		Name:      "Again",
		Symbol:    "AGAIN",
		Authority: base58.Encode(env.authority),
	}, env.authorityKey)
	assert.Equal(t, http.StatusConflict, statusCode)
	assert.Equal(t, "failed to initialize token", resp.Message)
}

func TestInitialize_AllocatesMint(t *testing.T) {
	env := setup(t, &testOverrides{})

	statusCode, resp := env.post(t, v1InitializePath, &initializeRequest{
		Header:    env.header(),
		Name:      "Space Token",
		Symbol:    "SPACE",
		Decimals:  6,
		Authority: base58.Encode(env.authority),
	}, env.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	var view tokenView
	require.NoError(t, json.Unmarshal(resp.Data, &view))

	mint, err := base58.Decode(view.Mint)
	require.NoError(t, err)
	require.Len(t, mint, ed25519.PublicKeySize)
	assert.NotEqual(t, base58.Encode(env.mint), view.Mint)

	token, _, err := spacetoken.GetSpaceTokenAddress(&spacetoken.GetSpaceTokenAddressArgs{Mint: mint})
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(token), view.Address)
}

func TestInitialize_AuthorityMustSign(t *testing.T) {
	env := setup(t, &testOverrides{})
	_, otherKey := testutil.NewRandomKeyPair(t)

	statusCode, _ := env.post(t, v1InitializePath, &initializeRequest{
		Header:    env.header(),
		Mint:      base58.Encode(env.mint),
		Name:      "Space Token",
		Symbol:    "SPACE",
		Authority: base58.Encode(env.authority),
	}, otherKey)
	assert.Equal(t, http.StatusForbidden, statusCode)

	statusCode, _ = env.get(t, v1GetInfoPath, url.Values{"token": {base58.Encode(env.token)}})
	assert.Equal(t, http.StatusNotFound, statusCode)
}

func TestInitialize_InvalidRequests(t *testing.T) {
	env := setup(t, &testOverrides{})

	statusCode, _ := env.do(t, http.MethodPost, v1InitializePath, bytes.NewReader([]byte("not json")))
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, _ = env.post(t, v1InitializePath, &initializeRequest{
		Header:    env.header(),
		Mint:      "invalid",
		Authority: base58.Encode(env.authority),
	}, env.authorityKey)
	assert.Equal(t, http.StatusBadRequest, statusCode)

	statusCode, resp := env.post(t, v1InitializePath, &initializeRequest{
		Header:    env.header(),
		Mint:      base58.Encode(env.mint),
		Name:      string(make([]byte, spacetoken.SpaceTokenAccountSize)),
		Authority: base58.Encode(env.authority),
	}, env.authorityKey)
	assert.Equal(t, http.StatusBadRequest, statusCode)
	assert.Equal(t, tokenadmin.ErrRecordCapacityExceeded.Error(), resp.Error)

	statusCode, _ = env.post(t, v1InitializePath, &initializeRequest{
		Header:    auth.Header{Timestamp: time.Now().Add(-time.Hour).Unix()},
		Mint:      base58.Encode(env.mint),
		Authority: base58.Encode(env.authority),
	}, env.authorityKey)
	assert.Equal(t, http.StatusUnauthorized, statusCode)
}

func TestMint(t *testing.T) {
	env := setup(t, &testOverrides{})
	env.initialize(t)
	destination := env.createTokenAccount(t)

	statusCode, resp := env.mintTo(t, destination, 1_500, env.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	var view tokenView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.EqualValues(t, 1_500, view.Supply)
	assert.Contains(t, string(resp.Data), `"supply":"1500"`)

	_, otherKey := testutil.NewRandomKeyPair(t)
	statusCode, resp = env.mintTo(t, destination, 1, otherKey)
	assert.Equal(t, http.StatusForbidden, statusCode)
	assert.Equal(t, tokenadmin.ErrUnauthorized.Error(), resp.Error)

	statusCode, _ = env.mintTo(t, base58.Encode(testutil.NewRandomAccount(t)), 1, env.authorityKey)
	assert.Equal(t, http.StatusNotFound, statusCode)

	assert.EqualValues(t, 1_500, env.getInfo(t).Supply)
}

func TestMint_Overflow(t *testing.T) {
	env := setup(t, &testOverrides{})
	env.initialize(t)
	destination := env.createTokenAccount(t)

	statusCode, resp := env.mintTo(t, destination, 1<<63, env.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	statusCode, resp = env.mintTo(t, destination, 1<<63, env.authorityKey)
	assert.Equal(t, http.StatusBadRequest, statusCode)
	assert.Equal(t, tokenadmin.ErrSupplyOverflow.Error(), resp.Error)

	assert.EqualValues(t, uint64(1<<63), env.getInfo(t).Supply)
}

func TestUpdateMetadata(t *testing.T) {
	env := setup(t, &testOverrides{})
	original := env.initialize(t)

	statusCode, resp := env.post(t, v1UpdateMetadataPath, &updateMetadataRequest{
		Header:    env.header(),
		Token:     base58.Encode(env.token),
		Authority: base58.Encode(env.authority),
	}, env.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)
	assert.Equal(t, original, env.getInfo(t))

	statusCode, resp = env.post(t, v1UpdateMetadataPath, &updateMetadataRequest{
		Header:    env.header(),
		Token:     base58.Encode(env.token),
		Authority: base58.Encode(env.authority),
		Symbol:    pointer.String("SPC"),
	}, env.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	expected := *original
	expected.Symbol = "SPC"
	assert.Equal(t, &expected, env.getInfo(t))
}

func TestTransferAuthority(t *testing.T) {
	env := setup(t, &testOverrides{})
	env.initialize(t)

	newAuthority, newAuthorityKey := testutil.NewRandomKeyPair(t)

	statusCode, _ := env.post(t, v1TransferAuthorityPath, &transferAuthorityRequest{
		Header:       env.header(),
		Token:        base58.Encode(env.token),
		Authority:    base58.Encode(newAuthority),
		NewAuthority: base58.Encode(newAuthority),
	}, newAuthorityKey)
	assert.Equal(t, http.StatusForbidden, statusCode)

	statusCode, resp := env.post(t, v1TransferAuthorityPath, &transferAuthorityRequest{
		Header:       env.header(),
		Token:        base58.Encode(env.token),
		Authority:    base58.Encode(env.authority),
		NewAuthority: base58.Encode(newAuthority),
	}, env.authorityKey)
	require.Equal(t, http.StatusOK, statusCode, resp.Error)
	assert.Equal(t, base58.Encode(newAuthority), env.getInfo(t).Authority)

	statusCode, _ = env.post(t, v1UpdateMetadataPath, &updateMetadataRequest{
		Header:    env.header(),
		Token:     base58.Encode(env.token),
		Authority: base58.Encode(env.authority),
		Name:      pointer.String("Stale"),
	}, env.authorityKey)
	assert.Equal(t, http.StatusForbidden, statusCode)
}

func TestGetTransactions(t *testing.T) {
	env := setup(t, &testOverrides{})
	env.initialize(t)
	destination := env.createTokenAccount(t)

	for i := 1; i <= 3; i++ {
		statusCode, resp := env.mintTo(t, destination, uint64(i), env.authorityKey)
		require.Equal(t, http.StatusOK, statusCode, resp.Error)
	}

	type page struct {
		Count        int          `json:"count"`
		Transactions []*eventView `json:"transactions"`
		NextCursor   string       `json:"next_cursor"`
	}
	getPage := func(params url.Values) (int, *page) {
		params.Set("token", base58.Encode(env.token))
		statusCode, resp := env.get(t, v1GetTransactionsPath, params)
		if statusCode != http.StatusOK {
			return statusCode, nil
		}
		var res page
		require.NoError(t, json.Unmarshal(resp.Data, &res))
		return statusCode, &res
	}

	// Newest first by default
	statusCode, all := getPage(url.Values{})
	require.Equal(t, http.StatusOK, statusCode)
	require.Equal(t, 4, all.Count)
	assert.Equal(t, "mint", all.Transactions[0].Type)
	assert.Equal(t, "3", *all.Transactions[0].Amount)
	assert.Equal(t, destination, *all.Transactions[0].Destination)
	assert.Equal(t, "initialize", all.Transactions[3].Type)

	var paged []*eventView
	cursor := ""
	for {
		params := url.Values{"limit": {"1"}, "type": {"mint"}}
		if len(cursor) > 0 {
			params.Set("cursor", cursor)
		}
		statusCode, res := getPage(params)
		require.Equal(t, http.StatusOK, statusCode)
		if res.Count == 0 {
			break
		}
		require.Equal(t, 1, res.Count)
		paged = append(paged, res.Transactions...)
		cursor = res.NextCursor
	}
	require.Len(t, paged, 3)
	for i, transaction := range paged {
		assert.Equal(t, all.Transactions[i].EventId, transaction.EventId)
	}

	statusCode, ascending := getPage(url.Values{"order": {"asc"}})
	require.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, "initialize", ascending.Transactions[0].Type)

	for _, params := range []url.Values{
		{"type": {"buy"}},
		{"limit": {"zero"}},
		{"limit": {"0"}},
		{"cursor": {"invalid"}},
	} {
		statusCode, _ := getPage(params)
		assert.Equal(t, http.StatusBadRequest, statusCode)
	}

	statusCode, _ = env.get(t, v1GetTransactionsPath, url.Values{"token": {"invalid"}})
	assert.Equal(t, http.StatusBadRequest, statusCode)
}

func TestGetTransactions_PageSizeCapped(t *testing.T) {
	env := setup(t, &testOverrides{maxPageSize: 2})
	env.initialize(t)
	destination := env.createTokenAccount(t)

	for i := 0; i < 3; i++ {
		statusCode, resp := env.mintTo(t, destination, 1, env.authorityKey)
		require.Equal(t, http.StatusOK, statusCode, resp.Error)
	}

	statusCode, resp := env.get(t, v1GetTransactionsPath, url.Values{
		"token": {base58.Encode(env.token)},
		"limit": {"50"},
	})
	require.Equal(t, http.StatusOK, statusCode)

	var res struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, 2, res.Count)
}

func TestGetTransactions_PageSizeAboveStoreLimit(t *testing.T) {
	env := setup(t, &testOverrides{maxPageSize: 5000})
	env.initialize(t)

	statusCode, resp := env.get(t, v1GetTransactionsPath, url.Values{
		"token": {base58.Encode(env.token)},
		"limit": {"2000"},
	})
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	var res struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, 1, res.Count)

	server := NewTokenServer(nil, nil, withManualTestOverrides(&testOverrides{maxPageSize: 5000}))
	opts, err := server.getHistoryQueryOptions(context.Background(), "", "2000", "", "")
	require.NoError(t, err)

	var applied query.QueryOptions
	applied.Supported = query.CanLimitResults | query.CanSortBy
	require.NoError(t, applied.Apply(opts...))
	assert.EqualValues(t, query.MaxPagingLimit, applied.Limit)
}

func TestGetHolders(t *testing.T) {
	env := setup(t, &testOverrides{})
	env.initialize(t)

	for _, amount := range []uint64{5, 2_000_000_000, 5_000_000_000_000} {
		destination := env.createTokenAccount(t)
		statusCode, resp := env.mintTo(t, destination, amount, env.authorityKey)
		require.Equal(t, http.StatusOK, statusCode, resp.Error)
	}

	statusCode, resp := env.get(t, v1GetHoldersPath, url.Values{
		"token": {base58.Encode(env.token)},
		"mint":  {base58.Encode(env.mint)},
	})
	require.Equal(t, http.StatusOK, statusCode, resp.Error)

	var view holdersView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.EqualValues(t, 3, view.TotalHolders)
	require.Len(t, view.Distribution, 5)
	assert.Equal(t, &holderBucketView{Range: "0-1000", Count: 1}, view.Distribution[0])
	assert.Equal(t, &holderBucketView{Range: "1000-10000", Count: 1}, view.Distribution[1])
	assert.Equal(t, &holderBucketView{Range: "1000000+", Count: 1}, view.Distribution[4])

	statusCode, _ = env.get(t, v1GetHoldersPath, url.Values{"token": {base58.Encode(env.token)}})
	assert.Equal(t, http.StatusBadRequest, statusCode)
}

func TestRateLimit(t *testing.T) {
	env := setup(t, &testOverrides{rateLimit: 1})
	env.initialize(t)

	statusCode, _ := env.post(t, v1UpdateMetadataPath, &updateMetadataRequest{
		Header:    env.header(),
		Token:     base58.Encode(env.token),
		Authority: base58.Encode(env.authority),
		Name:      pointer.String("Throttled"),
	}, env.authorityKey)
	assert.Equal(t, http.StatusTooManyRequests, statusCode)

	// Other authorities have their own budget
	_, otherKey := testutil.NewRandomKeyPair(t)
	statusCode, _ = env.post(t, v1UpdateMetadataPath, &updateMetadataRequest{
		Header:    env.header(),
		Token:     base58.Encode(env.token),
		Authority: base58.Encode(otherKey.Public().(ed25519.PublicKey)),
		Name:      pointer.String("Forbidden"),
	}, otherKey)
	assert.Equal(t, http.StatusForbidden, statusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	env := setup(t, &testOverrides{})

	req, err := http.NewRequest(http.MethodGet, env.server.URL+v1MintPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
