package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-offline-store/store"
)

type registerKind struct {
	use        string
	short      string
	collection store.Collection
	required   []string
}

var registerKinds = []registerKind{
	{use: "team", short: "Register a team", collection: store.Teams, required: store.TeamRequiredFields},
	{use: "fan", short: "Register a fan", collection: store.Fans, required: store.FanRequiredFields},
	{use: "sponsor", short: "Submit a sponsor inquiry", collection: store.Sponsors, required: store.SponsorRequiredFields},
}

// NewRegisterCommand creates the register command group.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Store a registration",
	}
	for _, kind := range registerKinds {
		cmd.AddCommand(newRegisterKindCommand(rootOpts, kind))
	}
	return cmd
}

func newRegisterKindCommand(rootOpts *RootOptions, kind registerKind) *cobra.Command {
	var (
		data   string
		fields map[string]string
	)

	cmd := &cobra.Command{
		Use:   kind.use,
		Short: kind.short,
		Long: fmt.Sprintf(`%s.

Fields come from --data (a JSON object) and --field key=value pairs; --field
wins on conflicts. Required: %s.`, kind.short, strings.Join(kind.required, ", ")),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(rootOpts, kind, data, fields, cmd)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "record as a JSON object")
	cmd.Flags().StringToStringVarP(&fields, "field", "f", nil, "record field as key=value")
	return cmd
}

// buildRecord merges the JSON object in data with fields.
func buildRecord(data string, fields map[string]string) (store.Record, error) {
	record := store.Record{}
	if strings.TrimSpace(data) != "" {
		dec := json.NewDecoder(strings.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("decode --data: %w", err)
		}
	}
	for k, v := range fields {
		record[k] = v
	}
	return record, nil
}

func runRegister(opts *RootOptions, kind registerKind, data string, fields map[string]string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	record, err := buildRecord(data, fields)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	container, err := opts.container(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	repo := container.Repository()
	var stored store.Record
	switch kind.collection {
	case store.Teams:
		stored, err = repo.RegisterTeam(cmd.Context(), record)
	case store.Fans:
		stored, err = repo.RegisterFan(cmd.Context(), record)
	default:
		stored, err = repo.SubmitSponsorInquiry(cmd.Context(), record)
	}

	var verr *store.ValidationError
	if errors.As(err, &verr) {
		_ = formatter.Error(ErrCodeValidation, "validation failed", verr.Messages)
		return WrapExitError(ExitFailure, "validation failed", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	text := []string{fmt.Sprintf("registered %s", stored.ID())}
	if code := stored.String(store.FieldReferralCode); code != "" {
		text = append(text, fmt.Sprintf("referral code %s", code))
	}
	return formatter.Success(stored, text...)
}

// NewSubscribeCommand creates the subscribe command.
func NewSubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "subscribe <email>",
		Short:         "Add an address to the newsletter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(rootOpts, args[0], cmd)
		},
	}
}

// SubscribeResult is the subscribe command payload.
type SubscribeResult struct {
	Subscriber store.Record `json:"subscriber"`
	Created    bool         `json:"created"`
}

func runSubscribe(opts *RootOptions, email string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	container, err := opts.container(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer container.Close()

	rec, created, err := container.Repository().Subscribe(cmd.Context(), email)
	if errors.Is(err, store.ErrInvalidEmail) {
		_ = formatter.Error(ErrCodeValidation, "validation failed", []string{"email is invalid"})
		return WrapExitError(ExitFailure, "validation failed", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	text := fmt.Sprintf("subscribed %s as %s", rec.String(store.FieldEmail), rec.ID())
	if !created {
		text = fmt.Sprintf("%s is already subscribed", rec.String(store.FieldEmail))
	}
	return formatter.Success(SubscribeResult{Subscriber: rec, Created: created}, text)
}
