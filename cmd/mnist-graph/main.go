package main

import (
	"log"
	"os"

	"github.com/FlavioCFOliveira/mnistcmp/internal/layer"
	"github.com/FlavioCFOliveira/mnistcmp/internal/pipeline"
)

// MNIST classification with an explicit training loop over a gorgonia
// graph: 784-128-64-10 ReLU network, SGD, cross entropy on logits.
func main() {
	log.SetFlags(0)
	log.SetPrefix("mnist-graph: ")

	cfg := pipeline.GraphDefaults()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	log.Print(layer.GetDefaultDevice())
	if _, err := pipeline.RunGraph(cfg, os.Stdout, log.Default()); err != nil {
		log.Fatal(err)
	}
}
