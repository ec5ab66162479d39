package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"cpaas-console/internal/backend"
	"cpaas-console/internal/config"
	"cpaas-console/internal/domain/messaging"
	"cpaas-console/internal/pkg/logger"
	msgsvc "cpaas-console/internal/service/messaging"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	channelName string
	csvFile     string
	message     string
	subject     string
	token       string
	maxInFlight int
)

var rootCmd = &cobra.Command{
	Use:           "cpaasctl",
	Short:         "Operator tooling for the CPaaS console",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cpaasctl version",
	Run: func(cmd *cobra.Command, args []string) {
		pterm.Info.Println("cpaasctl " + version)
	},
}

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Send one message to every recipient in a CSV file",
	Long: `Reads "name,contact" rows (after a header row) and sends the message to each
contact through the messaging backend. Rows whose contact does not fit the channel are skipped.`,
	RunE: runBulk,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	bulkCmd.Flags().StringVar(&channelName, "channel", "sms", "sms, email or whatsapp")
	bulkCmd.Flags().StringVar(&csvFile, "file", "", "path to the recipients CSV")
	bulkCmd.Flags().StringVar(&message, "message", "", "message body")
	bulkCmd.Flags().StringVar(&subject, "subject", "", "email subject")
	bulkCmd.Flags().StringVar(&token, "token", os.Getenv("CPAAS_TOKEN"), "backend bearer token")
	bulkCmd.Flags().IntVar(&maxInFlight, "max-in-flight", 0, "concurrent sends, 0 for one per recipient")
	_ = bulkCmd.MarkFlagRequired("file")
	_ = bulkCmd.MarkFlagRequired("message")

	rootCmd.AddCommand(bulkCmd, versionCmd)
}

func runBulk(cmd *cobra.Command, args []string) error {
	channel, err := messaging.ParseChannel(channelName)
	if err != nil {
		return err
	}
	if channel.IsFacebook() {
		return fmt.Errorf("channel %s is not supported from the CLI", channel)
	}

	f, err := os.Open(csvFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", csvFile, err)
	}
	defer f.Close()

	imported, err := messaging.ParseRecipientsCSV(f, channel)
	if err != nil {
		return err
	}
	if imported.Skipped > 0 {
		pterm.Warning.Printfln("%d rows skipped: contact is not valid for %s", imported.Skipped, channel)
	}

	cfg := config.Load()
	log, err := logger.New(logger.Config{Level: "warn", Format: "console"})
	if err != nil {
		return err
	}
	defer log.Sync()

	client := backend.NewClient(backend.Config{
		AuthURL:        cfg.Backend.AuthURL,
		MessagingURL:   cfg.Backend.MessagingURL,
		MetricsURL:     cfg.Backend.MetricsURL,
		Timeout:        cfg.Backend.Timeout,
		SMSServiceName: cfg.Backend.SMSServiceName,
	}, log)
	dispatcher := msgsvc.NewDispatcher(client, nil, nil, nil, msgsvc.Config{
		SMSMaxLength: cfg.Dispatch.SMSMaxLength,
		MaxInFlight:  maxInFlight,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Sending to %d recipients...", len(imported.Recipients)))
	res, err := dispatcher.Dispatch(ctx, msgsvc.Caller{BackendToken: token}, messaging.BulkSendRequest{
		Channel:    channel,
		Message:    message,
		Subject:    subject,
		Recipients: imported.Recipients,
	})
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Done")

	printResult(res)
	if res.Succeeded < res.Total {
		return fmt.Errorf("%d of %d deliveries failed", res.Total-res.Succeeded, res.Total)
	}
	return nil
}

// truncate shortens s to at most limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func printResult(res *messaging.BulkResult) {
	data := pterm.TableData{{"#", "Recipient", "Status", "Detail"}}
	for i, r := range res.Results {
		status := pterm.Green("sent")
		detail := string(r.Result)
		if !r.Success {
			status = pterm.Red("failed")
			detail = r.Error
		}
		detail = truncate(detail, 60)
		data = append(data, []string{strconv.Itoa(i + 1), r.Recipient.Address(res.Channel), status, detail})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	for _, w := range res.Warnings {
		pterm.Warning.Println(w)
	}
	pterm.Info.Printfln("Job %s: %s of %s sent",
		res.JobID,
		pterm.LightGreen(res.Succeeded),
		pterm.White(res.Total))
}
