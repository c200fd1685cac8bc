package main

import (
	"log"
	"os"

	"github.com/FlavioCFOliveira/mnistcmp/internal/layer"
	"github.com/FlavioCFOliveira/mnistcmp/internal/pipeline"
)

// MNIST classification with the Keras-like Sequential API: Flatten,
// Dense(128, relu), Dropout(0.2), Dense(10, softmax), Adam.
func main() {
	log.SetFlags(0)
	log.SetPrefix("mnist-sequential: ")

	cfg := pipeline.SequentialDefaults()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	log.Print(layer.GetDefaultDevice())
	if _, err := pipeline.RunSequential(cfg, os.Stdout, log.Default()); err != nil {
		log.Fatal(err)
	}
}
