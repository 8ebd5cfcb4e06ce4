package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/posgrade/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader_Defaults(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")
	convey.Convey("Given no file and no overrides", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then the defaults are returned", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.Scoring.BonusThreshold, convey.ShouldEqual, 0.95)
		})
	})
}

func TestConfigLoader_Env(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("POSGRADE_ADDR", ":9090")
	t.Setenv("POSGRADE_QUEUE_SIZE", "64")
	t.Setenv("POSGRADE_WORK_DIR", "/srv/runs")
	t.Setenv("POSGRADE_SCORING__SIZE_TOLERANCE", "5")
	t.Setenv("POSGRADE_SCORING__WEIGHTS__CLASSIFICATION_ACCURACY", "0.7")
	t.Setenv("POSGRADE_SPLIT__LEGACY_LEADING_DROP", "false")

	convey.Convey("Given environment overrides", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then they replace the defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.WorkDir, convey.ShouldEqual, "/srv/runs")
			convey.So(cfg.Scoring.SizeTolerance, convey.ShouldEqual, 5)
			convey.So(cfg.Scoring.Weights["classification_accuracy"], convey.ShouldEqual, 0.7)
			convey.So(cfg.Scoring.Weights["test_size_correct"], convey.ShouldEqual, 0.2)
			convey.So(cfg.Split.LegacyLeadingDrop, convey.ShouldBeFalse)
		})
	})
}

func TestConfigLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posgrade.yaml")
	yml := `
addr: ":7000"
label_column: Position
archive_path: /var/lib/posgrade/runs.db
scoring:
  bonus_threshold: 0.9
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvConfigFile, path)
	t.Setenv("POSGRADE_ADDR", ":7001")

	convey.Convey("Given a YAML file and an env override", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then file values apply and env wins", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7001")
			convey.So(cfg.LabelColumn, convey.ShouldEqual, "Position")
			convey.So(cfg.ArchivePath, convey.ShouldEqual, "/var/lib/posgrade/runs.db")
			convey.So(cfg.Scoring.BonusThreshold, convey.ShouldEqual, 0.9)
			convey.So(cfg.Scoring.SizeTolerance, convey.ShouldEqual, 2)
		})
	})
}

func TestConfigLoader_Errors(t *testing.T) {
	convey.Convey("Given a missing config file", t, func() {
		t.Setenv(config.EnvConfigFile, filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := config.Load(context.Background())

		convey.Convey("Then loading fails with ErrLoadConfig", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

func TestConfigLoader_Invalid(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("POSGRADE_WORKER_COUNT", "0")

	convey.Convey("Given an invalid override", t, func() {
		_, err := config.Load(context.Background())

		convey.Convey("Then validation rejects it", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
