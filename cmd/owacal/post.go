package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"owacal/internal/config"
	"owacal/internal/deliver"
)

const defaultTestPayload = `{"test": true, "source": "owacal"}`

func newPostCmd() *cobra.Command {
	var (
		trust       deliver.Trust
		data        string
		noSystemCAs bool
		timeoutSec  int
	)

	cmd := &cobra.Command{
		Use:   "post <url>",
		Short: "Send a JSON payload to an mTLS endpoint to check the client setup",
		Example: `  owacal post https://api.example.com/endpoint \
      --ca ~/.config/cauth/ca.pem \
      --cert ~/.config/cauth/crt.pem \
      --key ~/.config/cauth/key.pem

  # With custom JSON data, trusting only the CA file
  owacal post https://api.example.com/endpoint \
      --ca ca.pem --cert crt.pem --key key.pem \
      --data '{"test": "value"}' --no-system-cas`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(data)) {
				return errors.New("--data is not valid JSON")
			}

			trust = deliver.Trust{
				CA:   config.ExpandHome(trust.CA),
				Cert: config.ExpandHome(trust.Cert),
				Key:  config.ExpandHome(trust.Key),
			}
			var opts []deliver.Option
			if noSystemCAs {
				opts = append(opts, deliver.WithoutSystemRoots())
			}
			if timeoutSec > 0 {
				opts = append(opts, deliver.WithTimeout(time.Duration(timeoutSec)*time.Second))
			}

			if err := deliver.Post(cmd.Context(), []byte(data), args[0], trust, opts...); err != nil {
				var se *deliver.StatusError
				if errors.As(err, &se) {
					fmt.Fprintf(cmd.ErrOrStderr(), "HTTP error: %d\n  Response: %s\n", se.Code, se.Body)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "POST successful")
			return nil
		},
	}

	cmd.Flags().StringVar(&trust.CA, "ca", "", "Path to CA certificate file (PEM)")
	cmd.Flags().StringVar(&trust.Cert, "cert", "", "Path to client certificate file (PEM)")
	cmd.Flags().StringVar(&trust.Key, "key", "", "Path to client private key file (PEM)")
	cmd.Flags().StringVar(&data, "data", defaultTestPayload, "JSON data to POST")
	cmd.Flags().BoolVar(&noSystemCAs, "no-system-cas", false, "Trust only the --ca file, not the system CA bundle")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Timeout in seconds (default 30)")
	for _, name := range []string{"ca", "cert", "key"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
