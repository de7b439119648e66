// Package app はtzkeeperのコマンドラインとコンポーネントのワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hitoshi/tzkeeper/internal/model"
	"github.com/hitoshi/tzkeeper/internal/store"
	"github.com/spf13/cobra"
)

// EnvPassword はパスワードを渡す環境変数名。--password より優先度は低い。
const EnvPassword = "TZKEEPER_PASSWORD"

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。コマンドの出力はout、ログはlogOutに書き出す。
func Run(out, logOut io.Writer, args []string) error {
	root := newRootCmd(logOut)
	root.SetOut(out)
	root.SetErr(logOut)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// appFunc は初期化済みのAppを受け取るサブコマンド本体。
type appFunc func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error

// withApp はAppを構築してfnを実行し、最後に通知キューを出力するRunEを返す。
// fnがエラーを返した場合も通知は出力する。
func withApp(logOut io.Writer, fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := Init(logOut)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		ctx := cmd.Context()
		a, err := Build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		err = fn(ctx, cmd, a, args)
		a.FlushNotifications(cmd.OutOrStdout())
		return err
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "tzkeeper",
		Short:         "Timezone keeper client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newLoginCmd(logOut))
	root.AddCommand(newLogoutCmd(logOut))
	root.AddCommand(newRegisterCmd(logOut))
	root.AddCommand(newWhoamiCmd(logOut))
	root.AddCommand(newProfileCmd(logOut))
	root.AddCommand(newUserCmd(logOut))
	root.AddCommand(newTimezoneCmd(logOut))
	root.AddCommand(newServeCmd(logOut))
	root.AddCommand(newMigrateCmd(logOut))
	root.AddCommand(newHealthcheckCmd())
	return root
}

// resolvePassword はフラグ、環境変数の順にパスワードを取得する。
func resolvePassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(EnvPassword); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("password is required (--password or %s)", EnvPassword)
}

func currentUsername(a *App) (string, error) {
	sess, ok := a.Sessions.Current()
	if !ok {
		return "", model.ErrNotAuthenticated
	}
	return sess.Username, nil
}

func newLoginCmd(logOut io.Writer) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			if _, err := a.Hub.Account.Login(ctx, args[0], pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", args[0])
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "password (or set "+EnvPassword+")")
	return cmd
}

func newLogoutCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the session",
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if err := a.Hub.Account.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		}),
	}
}

func newRegisterCmd(logOut io.Writer) *cobra.Command {
	var reg model.Registration
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create a new account",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			pw, err := resolvePassword(reg.Password)
			if err != nil {
				return err
			}
			reg.Username = args[0]
			reg.Password = pw
			u, err := a.Hub.Account.Register(ctx, reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", u.Username)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (or set "+EnvPassword+")")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	return cmd
}

func newWhoamiCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if !a.Sessions.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			u, err := a.Hub.Profile.Fetch(ctx)
			if err != nil {
				return err
			}
			printUserDetail(cmd.OutOrStdout(), u)
			return nil
		}),
	}
}

func newProfileCmd(logOut io.Writer) *cobra.Command {
	profile := &cobra.Command{Use: "profile", Short: "Manage your own profile"}

	var firstName, lastName, email, password string
	update := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			var patch model.UserPatch
			flags := cmd.Flags()
			if flags.Changed("first-name") {
				patch.FirstName = &firstName
			}
			if flags.Changed("last-name") {
				patch.LastName = &lastName
			}
			if flags.Changed("email") {
				patch.Email = &email
			}
			if flags.Changed("password") {
				patch.Password = &password
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass at least one of --first-name, --last-name, --email, --password")
			}
			return a.Hub.Profile.Update(ctx, patch)
		}),
	}
	update.Flags().StringVar(&firstName, "first-name", "", "first name")
	update.Flags().StringVar(&lastName, "last-name", "", "last name")
	update.Flags().StringVar(&email, "email", "", "email address")
	update.Flags().StringVar(&password, "password", "", "new password")

	profile.AddCommand(update)
	return profile
}

func newUserCmd(logOut io.Writer) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Administer user accounts"}

	user.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if err := a.Hub.Users.Fetch(ctx); err != nil {
				return err
			}
			users := store.Values(a.Hub.Users.Snapshot().Users)
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no users")
				return nil
			}
			for _, u := range users {
				printUserLine(cmd.OutOrStdout(), u)
			}
			return nil
		}),
	})

	user.AddCommand(&cobra.Command{
		Use:   "get <username>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			u, err := a.Users.GetByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			printUserDetail(cmd.OutOrStdout(), u)
			return nil
		}),
	})

	user.AddCommand(&cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			if err := a.Hub.Users.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	})

	for _, enabled := range []bool{true, false} {
		use, verb := "disable", "disabled"
		if enabled {
			use, verb = "enable", "enabled"
		}
		user.AddCommand(&cobra.Command{
			Use:   use + " <username>",
			Short: strings.ToUpper(use[:1]) + use[1:] + " a user account",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
				if err := a.Hub.Users.SetEnabled(ctx, args[0], enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, args[0])
				return nil
			}),
		})
	}
	return user
}

func newTimezoneCmd(logOut io.Writer) *cobra.Command {
	tz := &cobra.Command{Use: "tz", Aliases: []string{"timezone"}, Short: "Manage your timezones"}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List your timezones (or the catalog with --all)",
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			out := cmd.OutOrStdout()
			if all {
				if err := a.Hub.Timezones.FetchAll(ctx); err != nil {
					return err
				}
				catalog := a.Hub.Timezones.Snapshot().Catalog
				if len(catalog) == 0 {
					fmt.Fprintln(out, "no timezones")
					return nil
				}
				for _, c := range catalog {
					fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", c.ID, c.Location, c.City, c.RelativeToGMT)
				}
				return nil
			}

			if err := a.Hub.Timezones.FetchOwn(ctx); err != nil {
				return err
			}
			own := store.Values(a.Hub.Timezones.Snapshot().Own)
			if len(own) == 0 {
				fmt.Fprintln(out, "no timezones")
				return nil
			}
			for _, t := range own {
				printTimezoneLine(out, t)
			}
			return nil
		}),
	}
	list.Flags().BoolVar(&all, "all", false, "list the timezone catalog instead of your own")
	tz.AddCommand(list)

	tz.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Show one of your timezones",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			owner, err := currentUsername(a)
			if err != nil {
				return err
			}
			t, err := a.Timezones.Get(ctx, owner, args[0])
			if err != nil {
				return err
			}
			printTimezoneLine(cmd.OutOrStdout(), *t)
			return nil
		}),
	})

	var createName string
	var createTimezoneID int
	create := &cobra.Command{
		Use:   "create --name <name> --timezone-id <id>",
		Short: "Add a timezone",
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if strings.TrimSpace(createName) == "" {
				return fmt.Errorf("--name is required")
			}
			if !cmd.Flags().Changed("timezone-id") {
				return fmt.Errorf("--timezone-id is required")
			}
			return a.Hub.Timezones.Create(ctx, model.Timezone{Name: createName, TimezoneID: createTimezoneID})
		}),
	}
	create.Flags().StringVar(&createName, "name", "", "timezone name (unique per user)")
	create.Flags().IntVar(&createTimezoneID, "timezone-id", 0, "catalog timezone id")
	tz.AddCommand(create)

	var newName string
	var newTimezoneID int
	update := &cobra.Command{
		Use:   "update <name>",
		Short: "Rename a timezone or point it at another catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			var patch model.TimezonePatch
			if cmd.Flags().Changed("name") {
				patch.Name = &newName
			}
			if cmd.Flags().Changed("timezone-id") {
				patch.TimezoneID = &newTimezoneID
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass --name and/or --timezone-id")
			}
			return a.Hub.Timezones.Update(ctx, args[0], patch)
		}),
	}
	update.Flags().StringVar(&newName, "name", "", "new name")
	update.Flags().IntVar(&newTimezoneID, "timezone-id", 0, "new catalog timezone id")
	tz.AddCommand(update)

	tz.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete one of your timezones",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logOut, func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			if err := a.Hub.Timezones.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	})
	return tz
}

func newServeCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only mirror daemon",
		RunE: withApp(logOut, func(ctx context.Context, _ *cobra.Command, a *App, _ []string) error {
			// TODO: /api/notifications を読むクライアントがいない場合は通知キューをログへ排出する
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		}),
	}
}

func newMigrateCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the session table migrations to DATABASE_URL",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := Init(logOut)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg)
		},
	}
}

// newHealthcheckCmd は軽量サブコマンドのため、フル初期化をスキップする。
func newHealthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local mirror daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(port)
		},
	}
}

func printTimezoneLine(w io.Writer, t model.Timezone) {
	fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", t.Name, t.TimezoneID, t.Location, t.City, t.RelativeToGMT)
}

func printUserLine(w io.Writer, u model.User) {
	state := "enabled"
	if !u.Enabled {
		state = "disabled"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Username, u.Role, state, u.Email)
}

func printUserDetail(w io.Writer, u *model.User) {
	fmt.Fprintf(w, "username: %s\nname: %s %s\nemail: %s\nrole: %s\nenabled: %t\n",
		u.Username, u.FirstName, u.LastName, u.Email, u.Role, u.Enabled)
}

// IsUsageError はコマンドライン引数の誤りによるエラーかどうかを返す。
func IsUsageError(err error) bool {
	return errors.Is(err, model.ErrInvalidArgument)
}
