package config

import (
	"os"

	"github.com/go-yaml/yaml"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
	Ledger   Ledger   `yaml:"ledger"`
	Ipfs     Ipfs     `yaml:"ipfs"`
}

type NodeInfo struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`

	// ---
	Address string
}

type Server struct {
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Ledger struct {
	Backend         string            `yaml:"backend"` // profile, contract
	RPCURL          string            `yaml:"rpcUrl"`
	ContractAddress string            `yaml:"contractAddress"`
	SignerKey       string            `yaml:"signerKey"`
	ChainID         int64             `yaml:"chainId"`
	FailPolicy      domain.FailPolicy `yaml:"failPolicy"`
}

type Ipfs struct {
	APIAddr    string            `yaml:"apiAddr"`
	FailPolicy domain.FailPolicy `yaml:"failPolicy"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	address, err := talentchain.PrivKeyToAddr(config.NodeInfo.PrivateKey)
	if err != nil {
		return Config{}, err
	}
	config.NodeInfo.Address = address

	if config.Ledger.FailPolicy == "" {
		config.Ledger.FailPolicy = domain.FailClosed
	}
	if config.Ipfs.FailPolicy == "" {
		config.Ipfs.FailPolicy = domain.FailClosed
	}

	return config, nil
}
