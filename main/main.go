package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/astromol/linert"
	"github.com/astromol/linert/io"
)

func main() {
	var (
		run           string
		exampleConfig bool
	)
	vars := map[string]*string{
		"Run": &run,
	}

	flag.StringVar(
		&run, "Run", "",
		"Configuration file for [Run] mode.",
	)
	flag.BoolVar(
		&exampleConfig, "ExampleConfig", false,
		"Prints an example configuration file to stdout.",
	)

	flag.Parse()

	if exampleConfig {
		fmt.Println(io.ExampleRunFile)
		return
	}

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Run":
		wrap := io.DefaultRunWrapper()
		err := gcfg.ReadFileInto(wrap, run)
		if err != nil {
			log.Fatal(err.Error())
		}
		con := &wrap.Run

		if !con.ValidNPhot() {
			log.Fatal("Invalid/non-existent 'NPhot' value.")
		} else if !con.ValidPopTol() {
			log.Fatal("Invalid 'PopTol' value.")
		} else if !con.ValidConvFrac() {
			log.Fatal("Invalid 'ConvFrac' value.")
		} else if !con.ValidMaxSweeps() {
			log.Fatal("Invalid 'MaxSweeps' value.")
		}

		if err := linert.RunBenchmark(wrap); err != nil {
			log.Fatal(err.Error())
		}
	default:
		panic("Impossible")
	}
}

func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but linert "+
				"only accepts one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}
