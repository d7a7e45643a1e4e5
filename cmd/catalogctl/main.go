package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/user/papertiger/internal/config"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/repository/migrations"
	"github.com/user/papertiger/internal/service"
	"github.com/user/papertiger/internal/utils"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRepos 连接数据库，调用方需要 defer 关闭返回的函数
func newRepos() (*repository.Repositories, func(), error) {
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return repository.NewRepositories(db), func() { sqlDB.Close() }, nil
}

// signalContext Ctrl-C 时取消长时间运行的命令
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:          "catalogctl",
	Short:        "Paper Tiger Cinema catalog maintenance",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// 加载环境变量
		_ = godotenv.Load()
		cfg = config.Load()
		config.SetupLogger(cfg)
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := migrations.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.Up(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := migrations.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.Down(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration.")
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := migrations.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		v, dirty, err := migrations.Version(db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %d (dirty: %t)\n", v, dirty)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import public-domain feature films from the Internet Archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		genres, _ := cmd.Flags().GetStringSlice("genre")
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		pause, _ := cmd.Flags().GetDuration("pause")

		repos, closeDB, err := newRepos()
		if err != nil {
			return err
		}
		defer closeDB()

		ctx, stop := signalContext(cmd)
		defer stop()

		log.Info("开始导入", "genres", genres, "max_pages", maxPages)

		client := service.NewArchiveClient(utils.NewHTTPClient(nil), cfg.ArchiveBaseURL)
		report, err := service.NewImporter(repos, client).Run(ctx, service.ImportOptions{
			Genres:   genres,
			MaxPages: maxPages,
			PageSize: pageSize,
			Pause:    pause,
		})
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}

		out := cmd.OutOrStdout()
		for genre, n := range report.PerGenre {
			fmt.Fprintf(out, "%-10s %d\n", genre, n)
		}
		fmt.Fprintf(out, "Imported %d movies, skipped %d.\n", report.Imported, report.Skipped)
		return nil
	},
}

// users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersPromoteCmd = &cobra.Command{
	Use:   "promote <username-or-email>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")

		repos, closeDB, err := newRepos()
		if err != nil {
			return err
		}
		defer closeDB()

		accounts := service.NewAccountService(repos, nil, nil, service.RealClock{}, service.AccountConfig{})
		user, err := accounts.SetRole(cmd.Context(), args[0], model.Role(role))
		if err != nil {
			return fmt.Errorf("promote %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Username, user.Role)
		return nil
	},
}

// cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired, unused confirmation tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, closeDB, err := newRepos()
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := service.NewCleanupService(repos, service.RealClock{}).RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired confirmations.\n", n)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	importCmd.Flags().StringSlice("genre", nil, "genres to import (default: all built-in genres)")
	importCmd.Flags().Int("max-pages", 20, "maximum result pages per genre")
	importCmd.Flags().Int("page-size", 50, "results per page")
	importCmd.Flags().Duration("pause", 500*time.Millisecond, "pause between result pages")

	usersPromoteCmd.Flags().String("role", string(model.RoleStaff), "new role: user, staff or admin")
	usersCmd.AddCommand(usersPromoteCmd)

	rootCmd.AddCommand(migrateCmd, importCmd, usersCmd, cleanupCmd)
}
