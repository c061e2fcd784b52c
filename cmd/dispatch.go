package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/app"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/config"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/geo"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/infra/logger"
)

var (
	seedPath string
	jobLat   float64
	jobLon   float64
	jobSkill string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Inject a test job into the dispatch engine",
	RunE:  dispatchJob,
}

func init() {
	dispatchCmd.Flags().StringVar(&seedPath, "seed", "seed.json", "technician and service-area seed file")
	dispatchCmd.Flags().Float64Var(&jobLat, "lat", 0, "job latitude")
	dispatchCmd.Flags().Float64Var(&jobLon, "lon", 0, "job longitude")
	dispatchCmd.Flags().StringVar(&jobSkill, "skill", "fiber", "required skill")
	rootCmd.AddCommand(dispatchCmd)
}

// seed describes the initial state loaded before injecting the test job.
type seed struct {
	Areas       []geo.ServiceArea  `json:"areas"`
	Technicians []model.Technician `json:"technicians"`
}

func dispatchJob(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New("dispatch-command")
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var s seed
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	for _, a := range s.Areas {
		if err := svc.Areas.Upsert(a); err != nil {
			return fmt.Errorf("area %s: %w", a.ID, err)
		}
	}
	for _, t := range s.Technicians {
		if err := svc.Registry.Register(t); err != nil {
			return fmt.Errorf("technician %s: %w", t.ID, err)
		}
	}

	job := model.Job{
		Location:       model.Coordinate{Lat: jobLat, Lon: jobLon},
		RequiredSkills: []model.Skill{model.Skill(jobSkill)},
		Duration:       time.Hour,
		RequestedAt:    time.Now(),
	}
	res, err := svc.Engine.AssignJob(ctx, job)
	if err != nil {
		return fmt.Errorf("assign: %w", err)
	}
	logg.Infof("assigned %s to %s (score %.3f, %.1f km, attempt %d)",
		res.WorkOrderID, res.TechnicianID, res.Score, res.DistanceKm, res.Attempt)

	<-ctx.Done()
	return nil
}
