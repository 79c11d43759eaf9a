package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	biodata "github.com/createmybiodata/biodata-engine"
	"github.com/createmybiodata/biodata-engine/pkg/api"
	"github.com/createmybiodata/biodata-engine/pkg/export"
	"github.com/createmybiodata/biodata-engine/pkg/gate"
	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/schema"
)

var (
	flagState   string
	flagBackend string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "biodata",
		Short: "Build, preview and export matrimonial biodata documents",
	}
	rootCmd.PersistentFlags().StringVar(&flagState, "state", defaultStatePath(), "path to the local state file")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", os.Getenv("BIODATA_BACKEND"), "backend base URL")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		setCmd(),
		setImageCmd(),
		showCmd(),
		addFieldCmd(),
		resetCmd(),
		submitCmd(),
		previewCmd(),
		exportCmd(),
		registerCmd(),
		loginCmd(),
		sendEmailCmd(),
		paymentCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "biodata.db"
	}
	return home + "/.biodata/state.db"
}

func openSession(ctx context.Context) (*biodata.Session, error) {
	logger := log.Default()
	if flagVerbose {
		logger.SetLevel(log.DebugLevel)
	}
	return biodata.Open(ctx, biodata.Config{
		StatePath:  flagState,
		BackendURL: flagBackend,
		Logger:     logger,
	})
}

func parseSection(raw string) (model.Section, error) {
	for _, section := range model.Sections() {
		if strings.EqualFold(string(section), raw) {
			return section, nil
		}
	}
	return "", fmt.Errorf("unknown section %q (use PersonalDetails, FamilyDetails or HabitsDeclaration)", raw)
}

func parseTemplate(cmd *cobra.Command) model.TemplateChoice {
	id, _ := cmd.Flags().GetInt("template")
	return model.TemplateChoice(id)
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <section> <field> <value>",
		Short: "Set a form field value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := parseSection(args[0])
			if err != nil {
				return err
			}
			if err := checkHeight(section, args[1], args[2]); err != nil {
				return err
			}
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Store().SetValue(section, args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("✓ %s.%s = %q\n", section, args[1], args[2])
			return nil
		},
	}
}

// checkHeight restricts the height field to the enumerated values the form
// presents as a dropdown.
func checkHeight(section model.Section, field, value string) error {
	if section != model.SectionPersonal || field != "height" || value == "" {
		return nil
	}
	for _, option := range schema.HeightOptions() {
		if value == option {
			return nil
		}
	}
	return fmt.Errorf(`height must be one of the listed values, e.g. 5' 4" (3' 0" through 8' 0")`)
}

func setImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-image <file>",
		Short: "Attach a profile photo to the form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			mediaType := "image/png"
			switch strings.ToLower(filepath.Ext(args[0])) {
			case ".jpg", ".jpeg":
				mediaType = "image/jpeg"
			case ".webp":
				mediaType = "image/webp"
			}

			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			encoded := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(raw)
			session.Store().SetImage(encoded)
			fmt.Printf("✓ attached %s\n", args[0])
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current form state",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			flat := session.Store().Freeze()
			for _, section := range model.Sections() {
				entries := flat.OrderedEntries(section)
				if len(entries) == 0 {
					continue
				}
				fmt.Println(section.Title())
				for _, entry := range entries {
					fmt.Printf("  %s: %s\n", model.DisplayLabel(entry.Key), entry.Value)
				}
			}
			return nil
		},
	}
}

func addFieldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-field <section>",
		Short: "Append a custom field to a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := parseSection(args[0])
			if err != nil {
				return err
			}
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			key, err := session.Store().AddField(section)
			if err != nil {
				return err
			}
			fmt.Printf("✓ added %s.%s\n", section, key)
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the form to schema defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			session.Store().Reset()
			fmt.Println("✓ form reset")
			return nil
		},
	}
}

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Freeze the form for rendering and export",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			if _, err := session.Submit(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("✓ form submitted")
			return nil
		},
	}
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the submitted form into a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			layout, err := session.Preview(cmd.Context(), parseTemplate(cmd))
			if err != nil {
				return err
			}
			return writeOutput(cmd, []byte(layout.HTML()))
		},
	}
	cmd.Flags().Int("template", int(model.TemplateFree), "template id")
	cmd.Flags().StringP("output", "o", "", "output file (stdout if empty)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the submitted form as PDF or a printable page",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			choice := parseTemplate(cmd)
			asPrintDoc, _ := cmd.Flags().GetBool("print-doc")

			var payload []byte
			if asPrintDoc {
				doc, err := session.PrintDocument(cmd.Context(), choice)
				if err != nil {
					return describeGateError(err)
				}
				payload = []byte(doc)
			} else {
				pdf, err := session.ExportPDF(cmd.Context(), choice)
				if err != nil {
					return describeGateError(err)
				}
				payload = pdf
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" && !asPrintDoc {
				frozen, _ := session.Frozen(cmd.Context())
				output = export.Filename(frozen)
			}
			if output != "" {
				if err := os.WriteFile(output, payload, 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("✓ wrote %s\n", output)
				return nil
			}
			_, err = os.Stdout.Write(payload)
			return err
		},
	}
	cmd.Flags().Int("template", int(model.TemplateFree), "template id")
	cmd.Flags().StringP("output", "o", "", "output file")
	cmd.Flags().Bool("print-doc", false, "emit the auto-printing HTML page instead of PDF")
	return cmd
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register contact details to unlock a restricted template",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			reg := session.Gate().Prefill(cmd.Context())
			questions := []*survey.Question{
				{
					Name:     "name",
					Prompt:   &survey.Input{Message: "Your name:", Default: reg.Name},
					Validate: survey.Required,
				},
				{
					Name:     "email",
					Prompt:   &survey.Input{Message: "Email address:", Default: reg.Email},
					Validate: survey.Required,
				},
				{
					Name:   "phone",
					Prompt: &survey.Input{Message: "Phone (optional):", Default: reg.Phone},
				},
			}
			answers := struct {
				Name  string
				Email string
				Phone string
			}{}
			if err := survey.Ask(questions, &answers); err != nil {
				return err
			}

			recordID, err := session.Register(cmd.Context(), gate.Registration{
				Name:  answers.Name,
				Email: answers.Email,
				Phone: answers.Phone,
			}, parseTemplate(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("✓ registered record %s, download awaiting approval\n", recordID)
			return nil
		},
	}
	cmd.Flags().Int("template", int(model.TemplateDualColumn), "template id")
	return cmd
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			client := session.Client()
			if client == nil {
				return fmt.Errorf("no backend configured (use --backend)")
			}

			var creds struct {
				Username string
				Password string
			}
			questions := []*survey.Question{
				{
					Name:     "username",
					Prompt:   &survey.Input{Message: "Username:"},
					Validate: survey.Required,
				},
				{
					Name:     "password",
					Prompt:   &survey.Password{Message: "Password:"},
					Validate: survey.Required,
				},
			}
			if err := survey.Ask(questions, &creds); err != nil {
				return err
			}

			newAccount, _ := cmd.Flags().GetBool("register")
			var sess api.Session
			if newAccount {
				sess, err = client.Register(cmd.Context(), api.Credentials{Username: creds.Username, Password: creds.Password})
			} else {
				sess, err = client.Login(cmd.Context(), api.Credentials{Username: creds.Username, Password: creds.Password})
			}
			if err != nil {
				return err
			}
			fmt.Printf("✓ signed in as %s\n", sess.Username)
			return nil
		},
	}
	cmd.Flags().Bool("register", false, "create a new account instead of signing in")
	return cmd
}

func sendEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-email <address>",
		Short: "Email the PDF of the last created record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.SendFreeEmail(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ sent to %s\n", args[0])
			return nil
		},
	}
}

func paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Check or verify payment status",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the account's payment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			client := session.Client()
			if client == nil {
				return fmt.Errorf("no backend configured (use --backend)")
			}
			status, err := client.PaymentStatus(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(status)
			return nil
		},
	})

	verify := &cobra.Command{
		Use:   "verify <transaction-id>",
		Short: "Submit a transaction id for manual verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			client := session.Client()
			if client == nil {
				return fmt.Errorf("no backend configured (use --backend)")
			}

			var screenshot []byte
			screenshotPath, _ := cmd.Flags().GetString("screenshot")
			if screenshotPath != "" {
				screenshot, err = os.ReadFile(screenshotPath)
				if err != nil {
					return fmt.Errorf("read screenshot: %w", err)
				}
			}
			if err := client.VerifyPayment(cmd.Context(), args[0], screenshot, filepath.Base(screenshotPath)); err != nil {
				return err
			}
			fmt.Println("✓ verification submitted")
			return nil
		},
	}
	verify.Flags().String("screenshot", "", "payment screenshot file")
	cmd.AddCommand(verify)

	return cmd
}

func writeOutput(cmd *cobra.Command, payload []byte) error {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err := os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Printf("✓ wrote %s\n", output)
	return nil
}

func describeGateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gate.ErrRegistrationRequired):
		return fmt.Errorf("this template requires registration: run `biodata register` first")
	case errors.Is(err, gate.ErrAwaitingApproval):
		return fmt.Errorf("download is awaiting manual approval")
	default:
		return err
	}
}
