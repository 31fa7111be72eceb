// Package main writes a self-signed development certificate for the API
// server. Point TLS_CERT and TLS_KEY at the generated files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Akash-kotagiri/book-haven/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args, generates the certificate and reports where it went.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	fs.SetOutput(out)
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs")
	dir := fs.String("out", "certs", "output directory")
	days := fs.Int("days", 365, "validity in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days <= 0 {
		return fmt.Errorf("days must be positive")
	}

	var names []string
	for _, h := range strings.Split(*hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			names = append(names, h)
		}
	}

	certPEM, keyPEM, err := certgen.GenerateServerCertificate(names, time.Duration(*days)*24*time.Hour)
	if err != nil {
		return err
	}
	certPath := filepath.Join(*dir, "server.crt")
	keyPath := filepath.Join(*dir, "server.key")
	if err := certgen.WriteFiles(certPath, keyPath, certPEM, keyPEM); err != nil {
		return err
	}

	fmt.Fprintf(out, "Certificate written to %s\n", certPath)
	fmt.Fprintf(out, "Key written to %s\n", keyPath)
	fmt.Fprintf(out, "Run the server with TLS_CERT=%s TLS_KEY=%s\n", certPath, keyPath)
	return nil
}
