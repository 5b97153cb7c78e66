package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"phantom_link/internal/cryptographic/keystream"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const prefix = "PHANTOMLINK_"

type (
	Config struct {
		LogLevel string
		Chain    Chain
		Server   Server
		Client   Client
	}

	Chain struct {
		ID                int64
		ContractAddress   common.Address
		VerifyingContract common.Address
	}

	Server struct {
		ListenAddr    string
		// Store is "redis" (Mongo handles, Redis inboxes) or "memory".
		Store         string
		MongoURI      string
		MongoDatabase string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		// MasterKey seals confidential values at rest. 32 bytes.
		MasterKey []byte
		// ProofSeed is the ed25519 seed the relayer signs input proofs with.
		ProofSeed []byte
	}

	Client struct {
		// Backend is "devnode" (HTTP ledger) or "evm" (JSON-RPC ledger).
		Backend    string
		NodeURL    string
		RPCURL     string
		PrivateKey string
		CachePath  string
	}
)

// Load reads .env (if present) and then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		LogLevel: get("LOG_LEVEL", "info"),
		Server: Server{
			ListenAddr:    get("LISTEN_ADDR", "localhost:9090"),
			Store:         get("STORE", "redis"),
			MongoURI:      get("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: get("MONGO_DB", "phantomlink"),
			RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
			RedisPassword: get("REDIS_PASSWORD", ""),
		},
		Client: Client{
			Backend:    get("BACKEND", "devnode"),
			NodeURL:    strings.TrimRight(get("NODE_URL", "http://localhost:9090"), "/"),
			RPCURL:     get("RPC_URL", "http://localhost:8545"),
			PrivateKey: get("PRIVATE_KEY", ""),
			CachePath:  get("CACHE_PATH", ""),
		},
	}

	var err error
	if cfg.Chain.ID, err = strconv.ParseInt(get("CHAIN_ID", "31337"), 10, 64); err != nil {
		return nil, fmt.Errorf("%sCHAIN_ID: %w", prefix, err)
	}
	if cfg.Server.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("%sREDIS_DB: %w", prefix, err)
	}
	if cfg.Chain.ContractAddress, err = address("CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3"); err != nil {
		return nil, err
	}
	if cfg.Chain.VerifyingContract, err = address("VERIFYING_CONTRACT", "0x5ffdaAB0373E62E2ea2944776209aEf29E631A64"); err != nil {
		return nil, err
	}
	if cfg.Server.MasterKey, err = key32("MASTER_KEY"); err != nil {
		return nil, err
	}
	if cfg.Server.ProofSeed, err = key32("PROOF_SEED"); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Client.Backend {
	case "devnode", "evm":
	default:
		return fmt.Errorf("%sBACKEND: unknown backend %q", prefix, c.Client.Backend)
	}
	switch c.Server.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("%sSTORE: unknown store %q", prefix, c.Server.Store)
	}
	if c.Chain.ContractAddress == (common.Address{}) {
		return fmt.Errorf("%sCONTRACT_ADDRESS: zero address", prefix)
	}
	return nil
}

func get(name, def string) string {
	if v, ok := os.LookupEnv(prefix + name); ok && v != "" {
		return v
	}
	return def
}

func address(name, def string) (common.Address, error) {
	addr, err := keystream.ParseAddress(get(name, def))
	if err != nil {
		return common.Address{}, fmt.Errorf("%s%s: %w", prefix, name, err)
	}
	return addr, nil
}

// key32 returns nil when unset; the devnode then generates a throwaway key.
func key32(name string) ([]byte, error) {
	v := get(name, "")
	if v == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s%s: %w", prefix, name, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%s%s: want 32 bytes, got %d", prefix, name, len(b))
	}
	return b, nil
}
