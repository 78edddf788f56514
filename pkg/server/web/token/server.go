package token

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spacenexus/spacetoken-server/pkg/auth"
	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/rate"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	"github.com/spacenexus/spacetoken-server/pkg/tokenadmin"
)

const (
	v1PathPrefix             = "/v1/token"
	v1InitializePath         = v1PathPrefix + "/initialize"
	v1MintPath               = v1PathPrefix + "/mint"
	v1UpdateMetadataPath     = v1PathPrefix + "/metadata"
	v1TransferAuthorityPath  = v1PathPrefix + "/authority"
	v1CreateTokenAccountPath = v1PathPrefix + "/account"
	v1GetInfoPath            = v1PathPrefix + "/info"
	v1GetTransactionsPath    = v1PathPrefix + "/transactions"
	v1GetHoldersPath         = v1PathPrefix + "/holders"

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"

	defaultTransactionsPageSize = 10
)

type Server struct {
	log      *logrus.Entry
	conf     *conf
	admin    *tokenadmin.Admin
	ledger   ledger.Ledger
	verifier *auth.SignedMessageVerifier
	limiter  rate.Limiter
}

func NewTokenServer(admin *tokenadmin.Admin, tokenLedger ledger.Ledger, configProvider ConfigProvider) *Server {
	conf := configProvider()
	ctx := context.Background()

	var limiter rate.Limiter = rate.NoLimiter{}
	if limit := conf.rateLimit.Get(ctx); limit > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(limit))
	}

	return &Server{
		log:      logrus.StandardLogger().WithField("type", "web/token/server"),
		conf:     conf,
		admin:    admin,
		ledger:   tokenLedger,
		verifier: auth.NewSignedMessageVerifier(conf.maxMessageAge.Get(ctx)),
		limiter:  limiter,
	}
}

// RegisterRoutes installs the token API on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post(v1InitializePath, s.initializeHandler(v1InitializePath))
	r.Post(v1MintPath, s.mintHandler(v1MintPath))
	r.Post(v1UpdateMetadataPath, s.updateMetadataHandler(v1UpdateMetadataPath))
	r.Post(v1TransferAuthorityPath, s.transferAuthorityHandler(v1TransferAuthorityPath))
	r.Post(v1CreateTokenAccountPath, s.createTokenAccountHandler(v1CreateTokenAccountPath))

	r.Get(v1GetInfoPath, s.getInfoHandler(v1GetInfoPath))
	r.Get(v1GetTransactionsPath, s.getTransactionsHandler(v1GetTransactionsPath))
	r.Get(v1GetHoldersPath, s.getHoldersHandler(v1GetHoldersPath))
}

func (s *Server) initializeHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to initialize token"

			var req initializeRequest
			ctx, err := s.authenticate(r, &req)
			if err != nil {
				return newFailure(failureMessage, err)
			}

			args, err := req.toArgs()
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithField("authority", req.Authority)

			if err := s.checkRateLimit(args.Authority); err != nil {
				return newFailure(failureMessage, err)
			}

			record, err := s.admin.Create(ctx, args)
			if err != nil {
				log.WithError(err).Info("failure initializing token")
				return newFailure(failureMessage, err)
			}

			view := newTokenView(record)
			view.Mint = base58.Encode(args.Mint)
			return http.StatusOK, NewGenericApiSuccessResponseBody(view)
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

func (s *Server) mintHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to mint tokens"

			var req mintRequest
			ctx, err := s.authenticate(r, &req)
			if err != nil {
				return newFailure(failureMessage, err)
			}

			args, err := req.toArgs()
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithFields(logrus.Fields{
				"token":     req.Token,
				"authority": req.Authority,
			})

			if err := s.checkRateLimit(args.Authority); err != nil {
				return newFailure(failureMessage, err)
			}

			record, err := s.admin.Mint(ctx, args)
			if err != nil {
				log.WithError(err).Info("failure minting tokens")
				return newFailure(failureMessage, err)
			}

			return http.StatusOK, NewGenericApiSuccessResponseBody(newTokenView(record))
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

func (s *Server) updateMetadataHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to update metadata"

			var req updateMetadataRequest
			ctx, err := s.authenticate(r, &req)
			if err != nil {
				return newFailure(failureMessage, err)
			}

			args, err := req.toArgs()
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithFields(logrus.Fields{
				"token":     req.Token,
				"authority": req.Authority,
			})

			if err := s.checkRateLimit(args.Authority); err != nil {
				return newFailure(failureMessage, err)
			}

			record, err := s.admin.UpdateMetadata(ctx, args)
			if err != nil {
				log.WithError(err).Info("failure updating metadata")
				return newFailure(failureMessage, err)
			}

			return http.StatusOK, NewGenericApiSuccessResponseBody(newTokenView(record))
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

func (s *Server) transferAuthorityHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to transfer authority"

			var req transferAuthorityRequest
			ctx, err := s.authenticate(r, &req)
			if err != nil {
				return newFailure(failureMessage, err)
			}

			args, err := req.toArgs()
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithFields(logrus.Fields{
				"token":         req.Token,
				"authority":     req.Authority,
				"new_authority": req.NewAuthority,
			})

			if err := s.checkRateLimit(args.Authority); err != nil {
				return newFailure(failureMessage, err)
			}

			record, err := s.admin.TransferAuthority(ctx, args)
			if err != nil {
				log.WithError(err).Info("failure transferring authority")
				return newFailure(failureMessage, err)
			}

			return http.StatusOK, NewGenericApiSuccessResponseBody(newTokenView(record))
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

func (s *Server) createTokenAccountHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to create token account"

			var req createAccountRequest
			ctx, err := s.authenticate(r, &req)
			if err != nil {
				return newFailure(failureMessage, err)
			}

			args := &ledger.CreateTokenAccountArgs{}
			if args.Payer, err = parseKey("payer", req.Payer); err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			if args.Owner, err = parseKey("owner", req.Owner); err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			if args.Mint, err = parseKey("mint", req.Mint); err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithFields(logrus.Fields{
				"payer": req.Payer,
				"owner": req.Owner,
				"mint":  req.Mint,
			})

			if err := s.checkRateLimit(args.Payer); err != nil {
				return newFailure(failureMessage, err)
			}

			address, err := s.ledger.CreateTokenAccount(ctx, args)
			if err != nil {
				log.WithError(err).Info("failure creating token account")
				return newFailure(failureMessage, err)
			}

			return http.StatusOK, NewGenericApiSuccessResponseBody(map[string]string{
				"address": base58.Encode(address),
			})
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

func (s *Server) getInfoHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to get token info"

			token, err := parseKey("token", r.URL.Query().Get("token"))
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithField("token", base58.Encode(token))

			record, err := s.admin.Get(r.Context(), token)
			if err != nil {
				if err != runtime.ErrAccountNotFound {
					log.WithError(err).Warn("failure getting token")
				}
				return newFailure(failureMessage, err)
			}

			return http.StatusOK, NewGenericApiSuccessResponseBody(newTokenView(record))
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

func (s *Server) getTransactionsHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to get transaction history"

			params := r.URL.Query()

			token, err := parseKey("token", params.Get("token"))
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithField("token", base58.Encode(token))

			opts, err := s.getHistoryQueryOptions(r.Context(), params.Get("type"), params.Get("limit"), params.Get("cursor"), params.Get("order"))
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}

			records, err := s.admin.GetHistory(r.Context(), token, opts...)
			if err != nil {
				log.WithError(err).Warn("failure getting transaction history")
				return newFailure(failureMessage, err)
			}

			transactions := make([]*eventView, 0, len(records))
			for _, record := range records {
				transactions = append(transactions, newEventView(record))
			}

			data := map[string]any{
				"count":        len(transactions),
				"transactions": transactions,
			}
			if len(transactions) > 0 {
				data["next_cursor"] = transactions[len(transactions)-1].Cursor
			}
			return http.StatusOK, NewGenericApiSuccessResponseBody(data)
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

func (s *Server) getHoldersHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			const failureMessage = "failed to get holder statistics"

			params := r.URL.Query()

			token, err := parseKey("token", params.Get("token"))
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			mint, err := parseKey("mint", params.Get("mint"))
			if err != nil {
				return newFailure(failureMessage, status.Error(codes.InvalidArgument, err.Error()))
			}
			log = log.WithFields(logrus.Fields{
				"token": base58.Encode(token),
				"mint":  base58.Encode(mint),
			})

			distribution, err := s.admin.GetHolderDistribution(r.Context(), token, mint)
			if err != nil {
				log.WithError(err).Info("failure getting holder distribution")
				return newFailure(failureMessage, err)
			}

			return http.StatusOK, NewGenericApiSuccessResponseBody(newHoldersView(distribution))
		}()

		s.writeResponse(w, log, statusCode, body)
	}
}

// authenticate decodes the signed request into dst and returns a context
// carrying the verified signers for the runtime invocation.
func (s *Server) authenticate(r *http.Request, dst interface{}) (context.Context, error) {
	msg, err := readSignedMessage(r)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	signers, err := s.verifier.Authenticate(r.Context(), msg, dst)
	if err != nil {
		return nil, err
	}
	return runtime.WithSigners(r.Context(), signers...), nil
}

func (s *Server) checkRateLimit(authority ed25519.PublicKey) error {
	allowed, err := s.limiter.Allow(base58.Encode(authority))
	if err != nil {
		s.log.WithError(err).Warn("failure checking rate limit")
		return status.Error(codes.Internal, "")
	}
	if !allowed {
		return status.Error(codes.ResourceExhausted, "")
	}
	return nil
}

func (s *Server) getHistoryQueryOptions(ctx context.Context, eventType, limit, cursor, order string) ([]query.Option, error) {
	opts := []query.Option{
		query.WithDirection(query.ToOrderingWithFallback(order, query.Descending)),
	}

	pageSize := uint64(defaultTransactionsPageSize)
	if len(limit) > 0 {
		parsed, err := strconv.ParseUint(limit, 10, 64)
		if err != nil || parsed == 0 {
			return nil, errors.New("limit must be a positive integer")
		}
		pageSize = parsed
	}
	maxPageSize := min(s.conf.maxPageSize.Get(ctx), query.MaxPagingLimit)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	opts = append(opts, query.WithLimit(pageSize))

	if len(eventType) > 0 {
		parsed, err := event.ParseType(eventType)
		if err != nil {
			return nil, err
		}
		opts = append(opts, query.WithFilter(query.NewFilter(uint64(parsed))))
	}

	if len(cursor) > 0 {
		parsed, err := query.ParseCursor(cursor)
		if err != nil {
			return nil, err
		}
		opts = append(opts, query.WithCursor(parsed))
	}

	return opts, nil
}

func (s *Server) writeResponse(w http.ResponseWriter, log *logrus.Entry, statusCode int, body GenericApiResponseBody) {
	w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body.ToString())); err != nil {
		log.WithError(err).Info("failed to write body")
	}
}

func newFailure(message string, err error) (int, GenericApiResponseBody) {
	statusCode, err := HandleGrpcErrorInWebContext(toStatusError(err))
	return statusCode, NewGenericApiFailureResponseBody(message, err)
}
