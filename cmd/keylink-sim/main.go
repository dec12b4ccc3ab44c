// keylink-sim runs both halves of a split keyboard and a receiver over a
// simulated radio and reports what the receiver accepted.
//
// Usage:
//
//	keylink-sim [options]
//
// Options:
//
//	-passphrase  Passphrase the root secret is stretched from
//	-salt        Stretching salt, at least 16 bytes
//	-frames      Reports sent per half (default: 100)
//	-drop        Radio drop probability (default: 0.1)
//	-dup         Radio duplicate probability (default: 0.05)
//	-reorder     Radio reorder probability (default: 0)
//	-tag         Transmitted tag length (default: 32)
//	-window      Accept reordered frames within a 32-counter window
//	-transport   pipe or udp (default: pipe)
//	-log         Log level (default: info)
//
// Example:
//
//	keylink-sim -frames 500 -drop 0.2 -dup 0.1 -reorder 0.05 -window
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/keylink/pkg/crypto"
	"github.com/backkem/keylink/pkg/session"
)

func main() {
	opts, err := ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	root, err := crypto.StretchPassphrase([]byte(opts.Passphrase), []byte(opts.Salt), session.RootSecretSize)
	if err != nil {
		log.Fatalf("Failed to derive root secret: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, opts, root)
	clear(root)
	if err != nil {
		log.Fatalf("Simulation error: %v", err)
	}

	printResult(opts, res)
}

// printResult prints the run summary to the console.
func printResult(opts Options, res *Result) {
	fmt.Println("\n========================================")
	fmt.Println("          keylink simulation")
	fmt.Println("========================================")
	fmt.Printf("Transport:      %s\n", opts.Transport)
	fmt.Printf("Tag size:       %d\n", opts.TagSize)
	for _, half := range session.Halves {
		fmt.Printf("Sent (%-5s):   %d\n", half, res.Sent[half])
	}
	if opts.Transport == "pipe" {
		fmt.Println("----------------------------------------")
		fmt.Printf("Radio dropped:  %d\n", res.Radio.Dropped)
		fmt.Printf("Radio dup'd:    %d\n", res.Radio.Duplicated)
		fmt.Printf("Radio reorder:  %d\n", res.Radio.Reordered)
	}
	fmt.Println("----------------------------------------")
	fmt.Printf("Accepted:       %d\n", res.Receiver.Accepted)
	fmt.Printf("Replayed:       %d\n", res.Receiver.Replayed)
	fmt.Printf("Rejected:       %d\n", res.Receiver.Rejected)
	fmt.Printf("Malformed:      %d\n", res.Receiver.Malformed)
	fmt.Printf("Key state:      %x\n", res.KeyState)
	fmt.Println("========================================")
}
