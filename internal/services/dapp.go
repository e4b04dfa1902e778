package services

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/kelsos/keeper-sync/internal/account"
	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/keeper"
	"github.com/kelsos/keeper-sync/internal/logger"
	"github.com/kelsos/keeper-sync/internal/metrics"
	"github.com/kelsos/keeper-sync/internal/models"
	"github.com/kelsos/keeper-sync/internal/networks"
	"github.com/kelsos/keeper-sync/internal/notify"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNotAuthorized  = errors.New("application is not authorized in WavesKeeper")
	ErrInvalidPayment = errors.New("invalid payment")
)

// TxSender signs and publishes transactions.
type TxSender interface {
	SendTx(ctx context.Context, tx models.TransactionRequest) (string, error)
}

// DappService turns form input into invoke script requests and loads dApp metadata.
type DappService struct {
	config      *config.Config
	node        NodeClient
	sender      TxSender
	store       *account.Store
	registry    *networks.Registry
	notifier    notify.Sink
	metaCache   *gocache.Cache
	defaultFee  decimal.Decimal
	scriptedFee decimal.Decimal
}

func NewDappService(
	cfg *config.Config,
	node NodeClient,
	sender TxSender,
	store *account.Store,
	registry *networks.Registry,
	notifier notify.Sink,
) (*DappService, error) {
	defaultFee, err := decimal.NewFromString(cfg.DefaultFee)
	if err != nil {
		return nil, fmt.Errorf("invalid default fee %q: %w", cfg.DefaultFee, err)
	}
	scriptedFee, err := decimal.NewFromString(cfg.ScriptedFee)
	if err != nil {
		return nil, fmt.Errorf("invalid scripted fee %q: %w", cfg.ScriptedFee, err)
	}

	return &DappService{
		config:      cfg,
		node:        node,
		sender:      sender,
		store:       store,
		registry:    registry,
		notifier:    notifier,
		metaCache:   gocache.New(cfg.MetaCacheTTL, 2*cfg.MetaCacheTTL),
		defaultFee:  defaultFee,
		scriptedFee: scriptedFee,
	}, nil
}

// ConvertArgs drops inputs without a value and converts the rest in order.
func (s *DappService) ConvertArgs(args []models.ArgumentInput) ([]models.CallArg, error) {
	out := make([]models.CallArg, 0, len(args))
	for _, arg := range args {
		if arg.Value == nil {
			continue
		}

		value, err := ConvertArgValue(arg)
		if errors.Is(err, ErrValueUndefined) {
			s.notifier.Notify(err.Error(), notify.Options{Type: notify.Error})
			value = ""
		} else if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg.Name, err)
		}

		out = append(out, models.CallArg{Type: ConvertArgType(arg.Type), Value: value})
	}
	return out, nil
}

// Fee picks the fee for the current account.
func (s *DappService) Fee() models.Fee {
	amount := s.defaultFee
	if s.store.Scripted() {
		amount = s.scriptedFee
	}
	return models.Fee{Tokens: amount.String(), AssetID: models.NativeAssetID}
}

func validatePayments(payment []models.Payment) error {
	for i, p := range payment {
		amount, err := decimal.NewFromString(p.Tokens)
		if err != nil {
			return fmt.Errorf("%w #%d: %v", ErrInvalidPayment, i+1, err)
		}
		if !amount.IsPositive() {
			return fmt.Errorf("%w #%d: amount must be positive", ErrInvalidPayment, i+1)
		}
		if p.AssetID == "" {
			return fmt.Errorf("%w #%d: asset id is empty", ErrInvalidPayment, i+1)
		}
	}
	return nil
}

// BuildCallRequest assembles the invoke script payload.
func (s *DappService) BuildCallRequest(address, function string, args []models.CallArg, payment []models.Payment) models.TransactionRequest {
	if args == nil {
		args = []models.CallArg{}
	}
	if payment == nil {
		payment = []models.Payment{}
	}

	return models.TransactionRequest{
		Type: models.TxTypeInvokeScript,
		Data: models.InvokeScriptData{
			DApp: address,
			Call: models.FunctionCall{
				Function: function,
				Args:     args,
			},
			Payment: payment,
			Fee:     s.Fee(),
		},
	}
}

// CallCallableFunction converts the arguments, builds the invoke request and
// submits it through the extension. It returns the transaction id.
func (s *DappService) CallCallableFunction(ctx context.Context, address, function string, args []models.ArgumentInput, payment []models.Payment) (string, error) {
	callArgs, err := s.ConvertArgs(args)
	if err != nil {
		logger.Error("Failed to convert arguments of %s.%s: %v", address, function, err)
		s.notifier.Notify(err.Error(), notify.Options{Type: notify.Error})
		if !s.config.SendEmptyArgsOnError {
			metrics.Submissions.WithLabelValues("invalid_args").Inc()
			return "", fmt.Errorf("failed to convert arguments: %w", err)
		}
		callArgs = []models.CallArg{}
	}

	if err := validatePayments(payment); err != nil {
		logger.Error("Rejected payment for %s.%s: %v", address, function, err)
		s.notifier.Notify(err.Error(), notify.Options{Type: notify.Error})
		metrics.Submissions.WithLabelValues("invalid_payment").Inc()
		return "", err
	}

	tx := s.BuildCallRequest(address, function, callArgs, payment)

	if !s.store.Authorized() {
		s.notifier.Notify("Application is not authorized in WavesKeeper", notify.Options{Type: notify.Warning})
		metrics.Submissions.WithLabelValues("unauthorized").Inc()
		return "", ErrNotAuthorized
	}

	signed, err := s.sender.SendTx(ctx, tx)
	if err != nil {
		logger.Error("Failed to send %s.%s: %v", address, function, err)
		message, title := describeFailure(err)
		s.notifier.Notify(message, notify.Options{Type: notify.Error, Title: title})
		metrics.Submissions.WithLabelValues("failed").Inc()
		return "", err
	}

	var transaction models.SignedTransaction
	if err := json.Unmarshal([]byte(signed), &transaction); err != nil {
		logger.Error("Failed to decode signed transaction: %v", err)
		s.notifier.Notify(err.Error(), notify.Options{Type: notify.Error, Title: "Unexpected answer from WavesKeeper"})
		metrics.Submissions.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	link := ""
	if network := s.store.Network(); network != nil {
		link = s.registry.ExplorerLink(network.Code, transaction.ID, "tx")
	}

	metrics.Submissions.WithLabelValues("sent").Inc()
	logger.Info("Transaction %s sent to %s.%s", transaction.ID, address, function)
	s.notifier.Notify(fmt.Sprintf("Transaction sent: %s\n", transaction.ID), notify.Options{
		Type:      notify.Success,
		Link:      link,
		LinkTitle: "View transaction",
	})
	return transaction.ID, nil
}

// describeFailure returns the message and title to show for a failed submission.
func describeFailure(err error) (string, string) {
	keeperErr, ok := keeper.AsError(err)
	if !ok {
		return err.Error(), ""
	}

	switch data := keeperErr.Data.(type) {
	case nil:
		return keeperErr.Message, ""
	case string:
		return data, keeperErr.Message
	default:
		encoded, encErr := json.Marshal(data)
		if encErr != nil {
			return fmt.Sprint(data), keeperErr.Message
		}
		return string(encoded), keeperErr.Message
	}
}

// ResolveServer picks the node for a dApp: the wallet's network when known,
// otherwise the network the address belongs to.
func (s *DappService) ResolveServer(address string) (string, error) {
	if network := s.store.Network(); network != nil {
		return network.Server, nil
	}

	network, err := s.registry.NetworkByAddress(address)
	if err != nil {
		return "", err
	}
	return network.Server, nil
}

// GetDappMeta returns the callable functions of a dApp, cached per server and address.
func (s *DappService) GetDappMeta(ctx context.Context, server, address string) (*models.DappMeta, error) {
	key := networks.CheckSlash(server) + address
	if cached, found := s.metaCache.Get(key); found {
		meta := cached.(models.DappMeta)
		return &meta, nil
	}

	res, err := s.node.GetDappMeta(ctx, server, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch meta of %s: %w", address, err)
	}

	s.metaCache.SetDefault(key, res.Meta)
	meta := res.Meta
	return &meta, nil
}

// LoadDapp resolves the node and metadata for the /{address} view. Failures
// are reported through IsFailed.
func (s *DappService) LoadDapp(ctx context.Context, address string) models.DappView {
	view := models.DappView{Address: address}

	server, err := s.ResolveServer(address)
	if err != nil {
		logger.Warn("Cannot resolve network for %s: %v", address, err)
		view.IsFailed = true
		return view
	}
	view.Server = server

	meta, err := s.GetDappMeta(ctx, server, address)
	if err != nil {
		logger.Warn("Cannot load dApp %s: %v", address, err)
		view.IsFailed = true
		return view
	}
	view.Meta = meta
	return view
}
