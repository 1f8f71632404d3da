package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/outreach"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/smtp"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send outreach emails to discovered contacts",
	Long: `Reads a results CSV produced by find and emails every row with
status "found". Each (company, address) pair is sent at most once
ever; reruns skip pairs already in the sent log. Dry-run mode is on by
default in config until SMTP is set up.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringP("input", "i", "", "results CSV from find (required)")
	sendCmd.Flags().Bool("dry-run", false, "compose and log without sending (also set via config)")
	rootCmd.AddCommand(sendCmd)
	_ = sendCmd.MarkFlagRequired("input")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inPath, _ := cmd.Flags().GetString("input")
	dryRunFlag, _ := cmd.Flags().GetBool("dry-run")
	dryRun := cfg.Outreach.DryRun || dryRunFlag

	in, err := os.Open(inPath)
	if err != nil {
		return eris.Wrapf(err, "opening %s", inPath)
	}
	defer in.Close()

	results, err := pipeline.ReadResults(in)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	sender, err := buildSender(st, dryRun)
	if err != nil {
		return err
	}

	var sent, skipped, failed int
	for _, res := range results {
		if res.Status != model.StatusFound || res.Email == "" {
			continue
		}
		_, err := sender.SendTo(ctx, res.Org, res.Contact, res.Email)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, store.ErrDuplicateSend):
			skipped++
			zap.L().Info("skipping already-contacted address",
				zap.String("company", res.Org.Name),
				zap.String("address", res.Email),
			)
		case errors.Is(err, outreach.ErrDailyLimitReached):
			zap.L().Warn("daily send limit reached, stopping",
				zap.Int("sent", sent))
			fmt.Fprintf(cmd.ErrOrStderr(), "daily limit reached after %d sends\n", sent)
			return nil
		default:
			failed++
			zap.L().Error("send failed",
				zap.String("company", res.Org.Name),
				zap.String("address", res.Email),
				zap.Error(err),
			)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d sent, %d skipped as duplicates, %d failed\n",
		sent, skipped, failed)
	if dryRun {
		fmt.Fprintln(cmd.ErrOrStderr(), "dry run: no mail was delivered")
	}
	return nil
}

// buildSender assembles the outreach sender: SMTP transport, a
// composer (model-drafted when an Anthropic key is configured), and
// the shared throttle.
func buildSender(st store.Store, dryRun bool) (*outreach.Sender, error) {
	fallback, err := outreach.NewTemplateComposer(cfg.Outreach.FromName)
	if err != nil {
		return nil, err
	}
	var composer outreach.Composer = fallback
	if cfg.Anthropic.APIKey != "" {
		llm, err := anthropic.NewClient(cfg.Anthropic.APIKey, anthropic.WithModel(cfg.Anthropic.Model))
		if err != nil {
			return nil, err
		}
		composer = outreach.NewLLMComposer(llm, fallback)
	}

	var transport smtp.Sender
	if dryRun {
		transport = nopTransport{}
	} else {
		transport, err = smtp.NewSender(smtp.Config{
			Host:     cfg.Outreach.SMTPHost,
			Port:     cfg.Outreach.SMTPPort,
			Username: cfg.Outreach.SMTPUser,
			Password: cfg.Outreach.SMTPPassword,
			From:     cfg.Outreach.From,
			FromName: cfg.Outreach.FromName,
		})
		if err != nil {
			return nil, err
		}
	}

	return outreach.NewSender(st, transport, composer, outreach.Config{
		SendsPerMinute: cfg.Outreach.SendsPerMinute,
		DailyLimit:     cfg.Outreach.DailyLimit,
		DryRun:         dryRun,
	}), nil
}

// nopTransport satisfies the transport in dry-run mode; the sender
// short-circuits before calling it.
type nopTransport struct{}

func (nopTransport) Send(context.Context, smtp.Message) error { return nil }
