// Package main is the entry point for the aws-k8s CLI.
//
// aws-k8s provisions disposable Kubernetes clusters on AWS spot instances:
// one kubeadm control-plane node plus a configurable mix of GPU and CPU
// workers, bootstrapped over SSH. Cluster state is kept in a local ledger so
// an interrupted create can be re-run and resumes where it stopped.
//
// Commands: create, delete, list, kubeconfig, version.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/cmd/aws-k8s/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
