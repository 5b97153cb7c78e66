package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"phantom_link/internal/config"
	"phantom_link/internal/cryptographic/keystream"
	"phantom_link/internal/fault"
	"phantom_link/internal/model"
	"phantom_link/internal/service/api"
	"phantom_link/internal/service/app"
	"phantom_link/internal/service/evm"
	"phantom_link/internal/service/wallet"
	"phantom_link/internal/storage/sqlite"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const usage = `usage: client <command> [flags]

commands:
  address                                print the PhantomLink contract address
  send-message --to ADDR --message TEXT  send a scrambled message
  get-message  --user ADDR --index N     show a stored message
  count        --user ADDR               show the inbox size of a user
  reveal       --index N [--user ADDR]   decrypt a message (default: own inbox)
  allow        --index N --grantee ADDR  share the key of one of your messages
  watch                                  print new messages as they arrive
  inbox                                  open the terminal inbox`

type session struct {
	cfg       *config.Config
	client    *api.Client
	wallet    *wallet.Wallet
	ledger    app.Ledger
	messenger *app.Messenger
	closers   []func()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		fatal("load config", err)
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		fatal("init logger", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, cmd, args)
	stop()
	log.Sync()
	if err != nil {
		fatal(cmd, err)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "address":
		fmt.Printf("PhantomLink address is %s\n", cfg.Chain.ContractAddress.Hex())
		return nil
	case "send-message", "get-message", "count", "reveal", "allow", "watch", "inbox":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := checkBackend(cfg.Client.Backend, cmd); err != nil {
		return err
	}

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	switch cmd {
	case "send-message":
		return s.sendMessage(ctx, args)
	case "get-message":
		return s.getMessage(ctx, args)
	case "count":
		return s.count(ctx, args)
	case "reveal":
		return s.reveal(ctx, args)
	case "allow":
		return s.allow(ctx, args)
	case "watch":
		return s.watch(ctx)
	default:
		return s.inbox(ctx)
	}
}

var errNoRelayer = errors.New("no confidential-compute relayer holds the key handles of this chain")

// checkBackend refuses commands that read or share key handles on the evm
// backend. Handles sent on chain are never granted to anyone on the devnode
// relayer, so every decrypt and share would be denied.
func checkBackend(backend, cmd string) error {
	if backend != "evm" {
		return nil
	}
	switch cmd {
	case "reveal", "allow", "inbox":
		return fault.Unavailable("relayer", errNoRelayer)
	}
	return nil
}

func fatal(op string, err error) {
	fmt.Fprintln(os.Stderr, fault.Status(op, err))
	os.Exit(1)
}

func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	s := &session{cfg: cfg}

	client, err := api.NewClient(cfg.Client.NodeURL)
	if err != nil {
		return nil, err
	}
	s.client = client

	if cfg.Client.PrivateKey != "" {
		if s.wallet, err = wallet.FromHex(cfg.Client.PrivateKey); err != nil {
			return nil, fmt.Errorf("PHANTOMLINK_PRIVATE_KEY: %w", err)
		}
	}

	switch cfg.Client.Backend {
	case "evm":
		var signer evm.Transactor
		if s.wallet != nil {
			signer = s.wallet
		}
		l, err := evm.Dial(ctx, cfg.Client.RPCURL, cfg.Chain.ContractAddress, cfg.Chain.ID, signer)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, l.Close)
		s.ledger = l
	default:
		var signer api.CallSigner
		if s.wallet != nil {
			signer = s.wallet
		}
		s.ledger = api.NewLedgerClient(client, signer)
	}
	return s, nil
}

func (s *session) close() {
	if s.messenger != nil {
		s.messenger.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// open brings up the messenger. Only commands that sign or decrypt need it.
func (s *session) open(ctx context.Context) (*app.Messenger, error) {
	if s.wallet == nil {
		return nil, errors.New("PHANTOMLINK_PRIVATE_KEY is not set")
	}

	opts := app.Options{
		Contract: s.cfg.Chain.ContractAddress,
		Ledger:   s.ledger,
		Relayer:  api.NewRelayerClient(s.client),
		Wallet:   s.wallet,
	}
	if path := s.cfg.Client.CachePath; path != "" {
		cache, err := sqlite.NewRevealedRepo(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { cache.Close() })
		opts.Cache = cache
	}

	m := app.NewMessenger(opts)
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	s.messenger = m
	return m, nil
}

func parseFlags(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, name := range required {
		if !set[name] {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

func (s *session) sendMessage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send-message", flag.ExitOnError)
	to := fs.String("to", "", "recipient address")
	message := fs.String("message", "", "message to encrypt and send")
	if err := parseFlags(fs, args, "to", "message"); err != nil {
		return err
	}

	m, err := s.open(ctx)
	if err != nil {
		return err
	}
	m.OnTransition(func(t model.Transition) {
		if t.Send == model.SendSubmitting {
			fmt.Println(t.Status)
		}
	})

	res, err := m.Send(ctx, *to, *message)
	if err != nil {
		return err
	}
	preview := res.Ciphertext
	if len(preview) > 18 {
		preview = preview[:18]
	}
	fmt.Printf("Sent tx %s in block %d\n", res.Receipt.TxHash.Hex(), res.Receipt.BlockNumber)
	fmt.Printf("Message sent to %s with ephemeral %s. Ciphertext: %s...\n", res.Recipient.Hex(), res.EphemeralAddress.Hex(), preview)
	return nil
}

func (s *session) getMessage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get-message", flag.ExitOnError)
	user := fs.String("user", "", "inbox owner")
	index := fs.Uint64("index", 0, "message index")
	if err := parseFlags(fs, args, "user", "index"); err != nil {
		return err
	}
	owner, err := keystream.ParseAddress(*user)
	if err != nil {
		return err
	}

	msg, err := s.ledger.GetMessage(ctx, owner, *index)
	if err != nil {
		return err
	}
	fmt.Printf("Message %d for %s\n", *index, owner.Hex())
	fmt.Printf("- sender: %s\n", msg.Sender.Hex())
	fmt.Printf("- ciphertext: %s\n", msg.Ciphertext)
	fmt.Printf("- key handle: %s\n", msg.Handle.Hex())
	fmt.Printf("- timestamp: %d\n", msg.Timestamp)
	return nil
}

func (s *session) count(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	user := fs.String("user", "", "inbox owner")
	if err := parseFlags(fs, args, "user"); err != nil {
		return err
	}
	owner, err := keystream.ParseAddress(*user)
	if err != nil {
		return err
	}

	n, err := s.ledger.MessageCount(ctx, owner)
	if err != nil {
		return err
	}
	fmt.Printf("Inbox size for %s: %d\n", owner.Hex(), n)
	return nil
}

func (s *session) reveal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reveal", flag.ExitOnError)
	user := fs.String("user", "", "inbox owner (default: your own address)")
	index := fs.Uint64("index", 0, "message index")
	if err := parseFlags(fs, args, "index"); err != nil {
		return err
	}

	m, err := s.open(ctx)
	if err != nil {
		return err
	}
	owner := m.Address()
	if *user != "" {
		if owner, err = keystream.ParseAddress(*user); err != nil {
			return err
		}
	}

	msg, err := s.ledger.GetMessage(ctx, owner, *index)
	if err != nil {
		return err
	}
	msg.Owner, msg.Index = owner, *index

	revealed, err := m.Reveal(ctx, msg)
	if err != nil {
		return err
	}
	fmt.Printf("Message %d for %s\n", *index, owner.Hex())
	fmt.Printf("- sender: %s\n", msg.Sender.Hex())
	fmt.Printf("- key: %s\n", revealed.EphemeralAddress.Hex())
	fmt.Printf("- message: %s\n", revealed.Plaintext)
	return nil
}

func (s *session) allow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("allow", flag.ExitOnError)
	index := fs.Uint64("index", 0, "message index in your inbox")
	grantee := fs.String("grantee", "", "address to share the key with")
	if err := parseFlags(fs, args, "index", "grantee"); err != nil {
		return err
	}

	m, err := s.open(ctx)
	if err != nil {
		return err
	}
	rcpt, err := m.Allow(ctx, m.Address(), *index, *grantee)
	if err != nil {
		return err
	}
	fmt.Printf("Shared key of message %d with %s in tx %s\n", *index, *grantee, rcpt.TxHash.Hex())
	return nil
}

func (s *session) owner() (common.Address, error) {
	if s.wallet == nil {
		return common.Address{}, errors.New("PHANTOMLINK_PRIVATE_KEY is not set")
	}
	return s.wallet.Address(), nil
}

func (s *session) watch(ctx context.Context) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}
	events, err := s.client.Watch(ctx, owner)
	if err != nil {
		return err
	}
	fmt.Printf("Watching inbox of %s\n", owner.Hex())
	for ev := range events {
		fmt.Printf("New message %d from %s (tx %s)\n", ev.Index, ev.Sender.Hex(), ev.TxHash.Hex())
	}
	return nil
}

func (s *session) inbox(ctx context.Context) error {
	m, err := s.open(ctx)
	if err != nil {
		return err
	}

	events, err := s.client.Watch(ctx, m.Address())
	if err != nil {
		log.Warn("live updates unavailable", zap.Error(err))
	}
	ui := app.NewUI(m)
	go func() {
		<-ctx.Done()
		ui.Stop()
	}()
	return ui.Run(ctx, events)
}
