package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaporm/internal/cli/output"
	"github.com/leapstack-labs/leaporm/internal/config"
	"github.com/leapstack-labs/leaporm/pkg/core"
)

const maskedPassword = "********"

// NewSourcesCommand creates the sources command.
func NewSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured data sources",
		Long: `List the data sources in leaporm.yaml after environment overrides and
${VAR} expansion. Passwords are always masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSources(NewCommandContext(cmd))
		},
	}
}

func runSources(c *CommandContext) error {
	infos, err := sourceInfos(c.Cfg)
	if err != nil {
		return err
	}
	r := c.Renderer

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.SourcesOutput{ConfigFile: c.Cfg.File, Sources: infos})
	}

	if len(infos) == 0 {
		r.Warning("no data sources configured; run 'leaporm init' to create leaporm.yaml")
		return nil
	}

	r.Header(1, fmt.Sprintf("Data sources (%d)", len(infos)))
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.Dialect,
			info.Target,
			info.Username,
			info.Password,
			strconv.Itoa(info.PoolMin) + "-" + strconv.Itoa(info.PoolMax),
		})
	}
	r.Table([]string{"Name", "Dialect", "Target", "User", "Password", "Pool"}, rows)
	return nil
}

func sourceInfos(cfg *config.Config) ([]output.SourceInfo, error) {
	infos := make([]output.SourceInfo, 0, len(cfg.DataSources))
	for _, name := range cfg.Names() {
		ds, err := cfg.DataSource(name)
		if err != nil {
			return nil, err
		}
		pool := ds.Pool.WithDefaults()
		info := output.SourceInfo{
			Name:     name,
			Dialect:  ds.Dialect,
			Target:   target(ds),
			Username: ds.Username,
			PoolMin:  pool.Min,
			PoolMax:  pool.Max,
		}
		if ds.Password != "" {
			info.Password = maskedPassword
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func target(ds core.DataSourceConfig) string {
	if ds.Dialect == core.DialectSQLite {
		return ds.Path
	}
	return fmt.Sprintf("%s:%d/%s", ds.Host, ds.Port, ds.Database)
}
