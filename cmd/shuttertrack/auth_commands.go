package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shuttertrack/shuttertrack/internal/oauthflow"
	"github.com/shuttertrack/shuttertrack/internal/recovery"
)

func newSignupCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				if password == "" {
					var err error
					password, err = pterm.DefaultInteractiveTextInput.
						WithMask("*").Show("Password")
					if err != nil {
						return err
					}
				}

				cred, err := d.Auth.SignUp(ctx, email, password, name)
				if err != nil {
					return err
				}
				pterm.Success.Printfln("Account created for %s. A verification email is on its way.", cred.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				if password == "" {
					var err error
					password, err = pterm.DefaultInteractiveTextInput.
						WithMask("*").Show("Password")
					if err != nil {
						return err
					}
				}

				cred, err := d.Auth.SignIn(ctx, email, password)
				if err != nil {
					return err
				}
				pterm.Success.Printfln("Signed in as %s", cred.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")

	cmd.AddCommand(newLoginGoogleCmd())
	return cmd
}

func newLoginGoogleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google account",
		Long: `Opens the Google consent page in your browser. After approving, paste the
redirect URL back here to finish. An interrupted attempt can be picked up
later with "shuttertrack resume".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				authURL, err := d.Flow.Start(ctx)
				if err != nil {
					return err
				}
				pterm.Info.Println("If the browser did not open, visit:")
				pterm.Println(authURL)

				redirect, err := pterm.DefaultInteractiveTextInput.Show("Paste the redirect URL")
				if err != nil {
					return err
				}
				if err := d.Flow.Deliver(redirect); err != nil {
					return err
				}

				cred, err := d.Flow.Complete(ctx)
				if err != nil {
					return err
				}
				pterm.Success.Printfln("Signed in as %s", cred.Email)
				return nil
			})
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				if err := d.Auth.SignOut(); err != nil {
					return err
				}
				pterm.Success.Println("Signed out")
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				if offline {
					if !d.Auth.IsAuthenticated() {
						pterm.Warning.Println("Not signed in")
						return nil
					}
					cred, err := d.Sessions.Load()
					if err != nil {
						return err
					}
					pterm.Success.Printfln("Signed in as %s (not verified with the server)", cred.Email)
					return nil
				}

				ok, cred := d.Auth.CheckState(ctx)
				if !ok {
					pterm.Warning.Println("Not signed in")
					return nil
				}
				pterm.Success.Printfln("Signed in as %s", cred.Email)

				if state := d.Tracker.State(); state.Kind == recovery.StateStarted {
					pterm.Info.Printfln("A Google sign-in started %s is still waiting; run \"shuttertrack resume\".",
						state.StartedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the server-side token check")
	return cmd
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Pick up an interrupted Google sign-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				outcome, cred, err := d.Flow.Resume(ctx)
				if err != nil {
					return err
				}

				switch outcome {
				case recovery.ResumeIdle:
					pterm.Info.Println("No sign-in is waiting")
				case recovery.ResumeDelivered:
					pterm.Success.Printfln("Signed in as %s", cred.Email)
				case recovery.ResumeRelaunched:
					pterm.Info.Println("Re-opened the consent page; run resume again after approving")
				case recovery.ResumeTimedOut:
					pterm.Warning.Println("The sign-in attempt expired; start over with \"shuttertrack login google\"")
				case recovery.ResumeExhausted:
					pterm.Warning.Println("Too many resume attempts; start over with \"shuttertrack login google\"")
				}
				return nil
			})
		},
	}
}

// newCallbackCmd is the URL-dispatch entry point: the OS hands the custom
// scheme redirect to a fresh process.
func newCallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "callback <uri>",
		Short:  "Deliver a sign-in redirect URI",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				if err := d.Flow.Deliver(args[0]); err != nil {
					return err
				}

				cred, err := d.Flow.Complete(ctx)
				if errors.Is(err, oauthflow.ErrNoPendingCallback) {
					// Delivered but not consumable yet; a later resume will take it.
					pterm.Info.Println("Callback stored")
					return nil
				}
				if err != nil {
					return fmt.Errorf("completing sign-in: %w", err)
				}
				pterm.Success.Printfln("Signed in as %s", cred.Email)
				return nil
			})
		},
	}
}
