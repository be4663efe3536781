// ABOUTME: User and proxy configuration administration subcommands
// ABOUTME: Seeds the authorized users the MCP tools act for
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/callbridge/models"
	"github.com/spf13/cobra"
)

type userFlags struct {
	platform       string
	token          string
	refreshToken   string
	hostname       string
	timezoneOffset string
	proxyID        string
}

// NewUsersCommand creates the users command.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage authorized users",
	}

	flags := &userFlags{}
	add := &cobra.Command{
		Use:   "add <id>",
		Short: "Add or replace a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				user := &models.User{
					ID:             args[0],
					Platform:       flags.platform,
					HostName:       flags.hostname,
					TimezoneOffset: flags.timezoneOffset,
					AccessToken:    flags.token,
					RefreshToken:   flags.refreshToken,
					ProxyID:        flags.proxyID,
				}
				if err := app.Users.Save(ctx, user); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved user %s on %s\n", user.ID, user.Platform)
				return nil
			})
		},
	}
	add.Flags().StringVar(&flags.platform, "platform", "local", "CRM platform key")
	add.Flags().StringVar(&flags.token, "token", "", "access token or API key")
	add.Flags().StringVar(&flags.refreshToken, "refresh-token", "", "OAuth refresh token")
	add.Flags().StringVar(&flags.hostname, "hostname", "", "CRM host name")
	add.Flags().StringVar(&flags.timezoneOffset, "timezone-offset", "+00:00", "CRM timezone offset")
	add.Flags().StringVar(&flags.proxyID, "proxy", "", "proxy config id")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				user, err := app.Users.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %s not found", args[0])
				}
				return printUser(cmd.OutOrStdout(), user)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <id> <setting> <value>",
		Short: "Set a user setting; JSON values are decoded",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				user, err := app.Users.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %s not found", args[0])
				}
				settings := user.UserSettings
				if settings == nil {
					settings = map[string]models.UserSetting{}
				}
				settings[args[1]] = models.UserSetting{Value: parseSettingValue(args[2])}
				return app.Users.UpdateSettings(ctx, user.ID, settings)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Forget a user without revoking the CRM authorization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				return app.Users.Delete(ctx, args[0])
			})
		},
	})

	cmd.AddCommand(newProxiesCommand(rootOpts))
	return cmd
}

func newProxiesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Manage proxy connector configurations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <id> <config.json>",
		Short: "Store a proxy configuration read from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read proxy config: %w", err)
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				return app.Proxies.Save(ctx, &models.ProxyConfig{ID: args[0], Config: json.RawMessage(raw)})
			})
		},
	})
	return cmd
}

// parseSettingValue decodes JSON scalars and objects, keeping anything else as a string.
func parseSettingValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func printUser(w io.Writer, u *models.User) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", u.ID)
	fmt.Fprintf(tw, "Platform:\t%s\n", u.Platform)
	if u.HostName != "" {
		fmt.Fprintf(tw, "Hostname:\t%s\n", u.HostName)
	}
	fmt.Fprintf(tw, "Timezone:\t%s\n", u.TimezoneOffset)
	if u.ProxyID != "" {
		fmt.Fprintf(tw, "Proxy:\t%s\n", u.ProxyID)
	}
	if u.TokenExpiry != nil {
		fmt.Fprintf(tw, "Token expiry:\t%s\n", u.TokenExpiry.Format("2006-01-02 15:04"))
	}

	keys := make([]string, 0, len(u.UserSettings))
	for k := range u.UserSettings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw, err := json.Marshal(u.UserSettings[k].Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "Setting %s:\t%s\n", k, strings.TrimSpace(string(raw)))
	}
	return tw.Flush()
}
