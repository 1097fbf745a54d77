package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/gasmorph/internal/adapters/bundler"
	"github.com/bnema/gasmorph/internal/adapters/chain"
	sqliterepo "github.com/bnema/gasmorph/internal/adapters/repo/sqlite"
	tomlrepo "github.com/bnema/gasmorph/internal/adapters/repo/toml"
	chainstore "github.com/bnema/gasmorph/internal/adapters/secrets/chain"
	"github.com/bnema/gasmorph/internal/adapters/signer"
	"github.com/bnema/gasmorph/internal/application"
	"github.com/bnema/gasmorph/internal/config"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/viper"
)

var errNoWallet = errors.New("no account given and no wallet imported; pass --account or run `gm wallet import`")

// dialBackend opens the chain connection. Tests swap it for an in-memory
// backend.
var dialBackend = func(ctx context.Context, rawURL string) (chain.Backend, func(), error) {
	client, err := chain.Dial(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

type app struct {
	cfg         config.Config
	secretStore ports.SecretStore
	wallet      *application.WalletService
	tasks       *application.TaskService
	clock       ports.Clock
	now         func() time.Time

	mu        sync.Mutex
	backend   chain.Backend
	reader    *chain.Reader
	history   *sqliterepo.History
	signer    *signer.Client
	relayer   *bundler.Client
	closers   []func()
	sessions  *application.SessionManager
	remoteSig *remoteSigner
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	secretStore, err := chainstore.NewPassFirstWithFileFallback(cfg.SecretsDir())
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	catalog, err := config.TaskCatalog()
	if err != nil {
		return nil, fmt.Errorf("load task catalog: %w", err)
	}

	clock := ports.SystemClock{}
	connections, err := tomlrepo.NewRepository(cfg.ConnectionsPath(), clock)
	if err != nil {
		return nil, fmt.Errorf("wire connection repository: %w", err)
	}

	a := &app{
		cfg:         cfg,
		secretStore: secretStore,
		wallet:      application.NewWalletService(secretStore),
		tasks:       application.NewTaskService(catalog, connections, log.Root()),
		clock:       clock,
		now:         time.Now,
	}
	a.remoteSig = &remoteSigner{app: a}

	return a, nil
}

// close releases every connection opened during the command.
func (a *app) close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) chainReader(ctx context.Context) (*chain.Reader, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reader != nil {
		return a.reader, nil
	}

	backend, closeFn, err := dialBackend(ctx, a.cfg.Network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", a.cfg.Network.RPCURL, err)
	}
	a.closers = append(a.closers, closeFn)
	a.backend = backend
	a.reader = chain.NewReader(backend, a.cfg.Contracts.NFT, a.cfg.Contracts.Paymaster, a.cfg.RequestTimeout)
	return a.reader, nil
}

func (a *app) chainBackend(ctx context.Context) (chain.Backend, error) {
	if _, err := a.chainReader(ctx); err != nil {
		return nil, err
	}
	return a.backend, nil
}

func (a *app) mintHistory() (*sqliterepo.History, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.history != nil {
		return a.history, nil
	}

	history, err := sqliterepo.Open(a.cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open mint history: %w", err)
	}
	a.closers = append(a.closers, func() { _ = history.Close() })
	a.history = history
	return history, nil
}

func (a *app) signerClient(ctx context.Context) (*signer.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.signer != nil {
		return a.signer, nil
	}

	secret, err := a.secretStore.Get(ctx, a.cfg.Signer.JWTSecretRef)
	if err != nil {
		return nil, fmt.Errorf("load signer jwt secret %q: %w", a.cfg.Signer.JWTSecretRef, err)
	}

	client, err := signer.Dial(ctx, a.cfg.Signer.URL, []byte(strings.TrimSpace(secret)), a.cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial signer %s: %w", a.cfg.Signer.URL, err)
	}
	a.closers = append(a.closers, client.Close)
	a.signer = client
	return client, nil
}

func (a *app) relayerClient(ctx context.Context) (*bundler.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.relayer != nil {
		return a.relayer, nil
	}

	client, err := bundler.Dial(ctx, a.cfg.Network.BundlerURL, a.cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial bundler %s: %w", a.cfg.Network.BundlerURL, err)
	}
	a.closers = append(a.closers, client.Close)
	a.relayer = client
	return client, nil
}

func (a *app) sessionManager(ctx context.Context) (*application.SessionManager, error) {
	reader, err := a.chainReader(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessions == nil {
		store := chain.NewSessionStore(reader, a.remoteSig, a.cfg.Contracts.Paymaster)
		a.sessions = application.NewSessionManager(store, a.cfg.Contracts.Owner, a.clock, log.Root())
	}
	return a.sessions, nil
}

func (a *app) eligibilityResolver(ctx context.Context) (*application.EligibilityResolver, error) {
	reader, err := a.chainReader(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := a.sessionManager(ctx)
	if err != nil {
		return nil, err
	}

	return application.NewEligibilityResolver(reader, sessions, a.cfg.Sponsorship.AllowList, log.Root()), nil
}

func (a *app) statusService(ctx context.Context) (*application.StatusService, error) {
	resolver, err := a.eligibilityResolver(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := a.sessionManager(ctx)
	if err != nil {
		return nil, err
	}
	history, err := a.mintHistory()
	if err != nil {
		return nil, err
	}

	return application.NewStatusService(resolver, sessions, a.tasks, history, a.clock), nil
}

// coordinator pays self-paid mints from the imported wallet.
func (a *app) coordinator(ctx context.Context) (*application.Coordinator, common.Address, error) {
	key, err := a.wallet.LoadKey(ctx, a.cfg.WalletKeyRef)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: %w", errNoWallet, err)
	}

	reader, err := a.chainReader(ctx)
	if err != nil {
		return nil, common.Address{}, err
	}
	backend, err := a.chainBackend(ctx)
	if err != nil {
		return nil, common.Address{}, err
	}
	sessions, err := a.sessionManager(ctx)
	if err != nil {
		return nil, common.Address{}, err
	}
	history, err := a.mintHistory()
	if err != nil {
		return nil, common.Address{}, err
	}

	transactor := chain.NewTransactor(backend, key, a.cfg.Network.ChainID, a.cfg.RequestTimeout, log.Root())
	coordinator := application.NewCoordinator(
		sessions,
		a.tasks,
		chain.NewTokenMinter(reader, transactor, a.cfg.Contracts.NFT),
		chain.NewSponsorMinter(a.remoteSig, a.cfg.Contracts.NFT),
		history,
		application.CoordinatorOptions{
			Signer:       a.cfg.Contracts.Owner,
			MaxAttempts:  a.cfg.Sponsorship.MaxAttempts,
			RetryBackoff: a.cfg.Sponsorship.RetryBackoff,
			Clock:        a.clock,
			Logger:       log.Root(),
		},
	)

	return coordinator, transactor.From(), nil
}

func (a *app) operationService(ctx context.Context) (*application.OperationService, error) {
	reader, err := a.chainReader(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := a.sessionManager(ctx)
	if err != nil {
		return nil, err
	}
	relayer, err := a.relayerClient(ctx)
	if err != nil {
		return nil, err
	}

	assembler := application.NewAssembler(reader, reader, a.cfg.Contracts.Paymaster, application.GasLimits{})
	backing := application.ModeBacking{Balances: reader, Sessions: sessions, AllowList: a.cfg.Sponsorship.AllowList}
	return application.NewOperationService(assembler, relayer, a.cfg.Network.EntryPoint, backing), nil
}

// account resolves the --account flag, falling back to the imported
// wallet's address.
func (a *app) account(ctx context.Context, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) != "" {
		return domain.ParseAddress(raw)
	}

	address, err := a.wallet.Address(ctx, a.cfg.WalletKeyRef)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return common.Address{}, errNoWallet
		}
		return common.Address{}, fmt.Errorf("%w: %w", errNoWallet, err)
	}
	return address, nil
}

// remoteSigner dials the signer service on first use so commands that never
// submit do not need its secret.
type remoteSigner struct {
	app *app
}

var _ ports.SignerService = (*remoteSigner)(nil)

func (s *remoteSigner) Submit(ctx context.Context, call domain.Call) (common.Hash, error) {
	client, err := s.app.signerClient(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return client.Submit(ctx, call)
}

func (s *remoteSigner) Address(ctx context.Context) (common.Address, error) {
	client, err := s.app.signerClient(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return client.Address(ctx)
}
