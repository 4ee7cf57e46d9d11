package main

import (
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/storefront/internal/domain/payment"
)

const secretEnv = "STOREFRONT_PAYMENT_KEY_SECRET"

func newSignCmd() *cobra.Command {
	var (
		secret    string
		orderID   string
		paymentID string
		verify    string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign or verify a payment callback",
		Long: `Computes the gateway signature of a payment callback, the hex HMAC-SHA256
of "ORDER|PAYMENT" under the key secret. With --verify the given signature is
checked instead. The secret defaults to $` + secretEnv + `.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv(secretEnv)
			}
			if secret == "" {
				return errors.New("secret is required: set --secret or " + secretEnv)
			}
			if orderID == "" || paymentID == "" {
				return errors.New("--order and --payment are required")
			}

			out := cmd.OutOrStdout()
			if verify == "" {
				_, _ = fmt.Fprintln(out, payment.Sign(secret, orderID, paymentID))
				return nil
			}
			if !payment.Verify(secret, orderID, paymentID, verify) {
				return payment.ErrSignatureMismatch
			}
			_, _ = fmt.Fprintln(out, "signature ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "gateway key secret")
	cmd.Flags().StringVar(&orderID, "order", "", "gateway order id")
	cmd.Flags().StringVar(&paymentID, "payment", "", "gateway payment id")
	cmd.Flags().StringVar(&verify, "verify", "", "signature to verify instead of signing")
	return cmd
}
