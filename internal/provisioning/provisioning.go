// Package provisioning defines the phase pipeline that drives a cluster
// operation to completion.
//
// A cluster create is a sequence of phases (infrastructure, compute,
// cluster join, kubeconfig export); teardown is a single destroy phase. All
// phases share a Context carrying the configuration, the cloud clients, and
// the resource ledger. Each phase consults the ledger before acting and
// persists it after every state-changing step, which is what makes an
// interrupted run resumable.
package provisioning

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gjolly/aws-k8s/internal/config"
	awsclient "github.com/gjolly/aws-k8s/internal/platform/aws"
	"github.com/gjolly/aws-k8s/internal/platform/ssh"
	"github.com/gjolly/aws-k8s/internal/state"
)

// Phase is one step of a cluster operation. Phases are re-entrant: running
// a phase whose work is already recorded in the ledger is a no-op.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the phase.
	Provision(ctx *Context) error
}

// Context carries the dependencies and ledger for one cluster operation.
type Context struct {
	context.Context

	Config *config.Config
	Record *state.ClusterRecord
	Store  *state.Store

	EC2 awsclient.EC2API
	SSM awsclient.SSMAPI

	// Dial opens the remote command channel to a node. Nil for operations
	// that never talk to nodes (teardown).
	Dial ssh.Factory
}

// NewContext creates a provisioning context for one cluster operation.
func NewContext(ctx context.Context, cfg *config.Config, record *state.ClusterRecord, store *state.Store, ec2c awsclient.EC2API, ssmc awsclient.SSMAPI, dial ssh.Factory) *Context {
	return &Context{
		Context: ctx,
		Config:  cfg,
		Record:  record,
		Store:   store,
		EC2:     ec2c,
		SSM:     ssmc,
		Dial:    dial,
	}
}

// SaveRecord durably persists the ledger. Called after every
// externally-visible side effect so a crash loses at most the in-flight
// step, never a committed one.
func (c *Context) SaveRecord() error {
	if err := c.Store.Save(c.Record.ClusterName, c.Record); err != nil {
		return fmt.Errorf("failed to persist cluster state: %w", err)
	}
	return nil
}

// RunPhases executes phases sequentially, stopping at the first failure.
// The ledger keeps whatever the completed phases persisted, so a failed run
// can be re-invoked and resumes with the remaining work.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()

	for i, phase := range phases {
		phaseStart := time.Now()
		log.Infof("[%s] starting (%d/%d)", phase.Name(), i+1, len(phases))

		if err := phase.Provision(ctx); err != nil {
			log.Errorf("[%s] failed: %v", phase.Name(), err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		log.Infof("[%s] completed in %v", phase.Name(), time.Since(phaseStart).Round(time.Millisecond))
	}

	log.Infof("All phases completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
