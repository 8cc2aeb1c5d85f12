// Small helper to print a prover-node scenario with random blob challenges.
//
//	go run ./scripts/gen-scenario.go -epochs 3 -checkpoints 4 > scenario.yaml
package main

import (
	"flag"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

type challenges struct {
	Z     string `yaml:"z"`
	Gamma string `yaml:"gamma"`
}

type generate struct {
	Checkpoints         int `yaml:"checkpoints"`
	BlocksPerCheckpoint int `yaml:"blocks_per_checkpoint"`
	TxsPerBlock         int `yaml:"txs_per_block"`
	Messages            int `yaml:"messages"`
}

type epoch struct {
	Number     uint64     `yaml:"number"`
	Challenges challenges `yaml:"challenges"`
	Generate   generate   `yaml:"generate"`
}

func randomHash() common.Hash {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(crypto.FromECDSA(key))
}

func main() {
	var (
		epochs = flag.Int("epochs", 2, "number of epochs")
		first  = flag.Uint64("first-epoch", 1, "first epoch number")
		g      generate
	)
	flag.IntVar(&g.Checkpoints, "checkpoints", 2, "checkpoints per epoch")
	flag.IntVar(&g.BlocksPerCheckpoint, "blocks", 2, "blocks per checkpoint")
	flag.IntVar(&g.TxsPerBlock, "txs", 4, "txs per block")
	flag.IntVar(&g.Messages, "messages", 2, "L1 to L2 messages per checkpoint")
	flag.Parse()

	out := struct {
		Epochs []epoch `yaml:"epochs"`
	}{}
	for i := 0; i < *epochs; i++ {
		out.Epochs = append(out.Epochs, epoch{
			Number:     *first + uint64(i),
			Challenges: challenges{Z: randomHash().Hex(), Gamma: randomHash().Hex()},
			Generate:   g,
		})
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		panic(err)
	}
}
