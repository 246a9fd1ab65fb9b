package main

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	batcher "github.com/branched-services/go-batcher"
)

func (a *app) snapshotCmd() *cobra.Command {
	var account, suri string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch the nonce, genesis hash, best block and runtime version a submission would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			codec, err := a.codec(account == "")
			if err != nil {
				return err
			}
			var id batcher.AccountID
			if account != "" {
				if id, err = batcher.ParseAccountID(account); err != nil {
					return err
				}
			} else {
				signer, err := codec.Signer(suri)
				if err != nil {
					return fmt.Errorf("derive signer: %w", err)
				}
				id = signer.Account()
			}

			node, client, err := a.dial(ctx, codec)
			if err != nil {
				return err
			}
			defer node.Close()

			opts, err := batcher.FetchSubmissionOptions(ctx, client, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Account:        %s\n", id)
			fmt.Fprintf(out, "Nonce:          %d\n", opts.Nonce)
			fmt.Fprintf(out, "Genesis hash:   %s\n", opts.GenesisHash.Hex())
			fmt.Fprintf(out, "Best block:     %s\n", opts.BlockHash.Hex())
			fmt.Fprintf(out, "Runtime:        %s v%d (tx v%d)\n",
				opts.RuntimeVersion.SpecName, opts.RuntimeVersion.SpecVersion, opts.RuntimeVersion.TransactionVersion)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account to snapshot (SS58 or 0x hex)")
	cmd.Flags().StringVar(&suri, "suri", "//Alice", "Secret URI of the signer, used when --account is unset")
	return cmd
}

func (a *app) intervalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interval",
		Short: "Show the derived block interval and per-call weight ceiling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			codec, err := a.codec(true)
			if err != nil {
				return err
			}
			node, client, err := a.dial(ctx, codec)
			if err != nil {
				return err
			}
			defer node.Close()

			consts, err := client.Constants(ctx)
			if err != nil {
				return err
			}
			interval := batcher.EstimateBlockInterval(consts)
			est := batcher.WeightFromConstants(consts, interval, a.cfg.ToleranceBlocks)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Block interval: %s\n", interval)
			if est.IsEmpty {
				fmt.Fprintf(out, "Weight ceiling: unavailable, using %s\n", batcher.MaxCallWeight)
				return nil
			}
			fmt.Fprintf(out, "Weight ceiling: %s (weight v2: %t)\n", est.Weight, est.IsWeightV2)
			fmt.Fprintf(out, "Execution time: %s (%.2f%% of block, valid: %t)\n", est.ExecutionTime, est.Percentage, est.IsValid)
			return nil
		},
	}
}

func (a *app) deployCmd() *cobra.Command {
	var (
		suri, value, salt string
		args              []string
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Instantiate the configured contract code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			codec, err := a.codec(true)
			if err != nil {
				return err
			}
			signer, err := codec.Signer(suri)
			if err != nil {
				return fmt.Errorf("derive signer: %w", err)
			}
			contractABI, err := batcher.LoadABI(a.cfg.ContractABI)
			if err != nil {
				return err
			}
			code, err := batcher.LoadCode(a.cfg.ContractCode)
			if err != nil {
				return err
			}
			params := batcher.DeployParams{}
			if params.Args, err = batcher.ParseArgs(contractABI.Constructor, args); err != nil {
				return err
			}
			if params.Value, err = optionalBalance(value); err != nil {
				return err
			}
			if params.Salt, err = deploySalt(salt); err != nil {
				return err
			}

			node, client, err := a.dial(ctx, codec)
			if err != nil {
				return err
			}
			defer node.Close()

			deployer, err := batcher.NewDeployer(client, contractABI, code, signer, a.options()...)
			if err != nil {
				return err
			}
			dep, err := deployer.Deploy(ctx, params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Contract:  %s\n", dep.Address)
			fmt.Fprintf(out, "Salt:      %s\n", hexutil.Encode(params.Salt))
			printReceipt(out, dep.Receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&suri, "suri", "//Alice", "Secret URI of the signer")
	cmd.Flags().StringVar(&value, "value", "", "Balance transferred to the contract")
	cmd.Flags().StringVar(&salt, "salt", "", "Instantiation salt (0x hex, random when unset)")
	cmd.Flags().StringSliceVar(&args, "args", nil, "Constructor arguments")
	return cmd
}

func (a *app) callCmd() *cobra.Command {
	var (
		suri, value string
		batch       int
		query       bool
	)
	cmd := &cobra.Command{
		Use:   "call <method> [args...]",
		Short: "Dry-run, build and submit a contract message",
		Long: `Dry-run, build and submit a contract message.

With --batch N the call is built N times and submitted as one atomic
utility.batch extrinsic. With --query the dry-run output is printed and
nothing is submitted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			codec, err := a.codec(true)
			if err != nil {
				return err
			}
			signer, err := codec.Signer(suri)
			if err != nil {
				return fmt.Errorf("derive signer: %w", err)
			}
			contractABI, err := batcher.LoadABI(a.cfg.ContractABI)
			if err != nil {
				return err
			}
			address, err := batcher.ParseAccountID(a.cfg.ContractAddress)
			if err != nil {
				return fmt.Errorf("contract address: %w", err)
			}
			method, ok := contractABI.Methods[args[0]]
			if !ok {
				return &batcher.MethodNotFoundError{Contract: address, Method: args[0]}
			}
			values, err := batcher.ParseArgs(method, args[1:])
			if err != nil {
				return err
			}
			amount, err := optionalBalance(value)
			if err != nil {
				return err
			}

			node, client, err := a.dial(ctx, codec)
			if err != nil {
				return err
			}
			defer node.Close()

			opts := a.options()
			contract := batcher.NewContract(client, address, contractABI, signer.Account(), opts...)
			out := cmd.OutOrStdout()

			if query {
				result, err := contract.Query(ctx, method.Name, values...)
				if err != nil {
					return err
				}
				for i, v := range result {
					fmt.Fprintf(out, "%s[%d]: %v\n", method.Name, i, v)
				}
				return nil
			}

			calls := make([]*batcher.CallDescriptor, 0, max(batch, 1))
			for i := 0; i < max(batch, 1); i++ {
				call, err := contract.BuildWithValue(ctx, method.Name, amount, values...)
				if err != nil {
					return err
				}
				calls = append(calls, call)
			}
			receipt, err := batcher.NewSubmitter(client, signer, opts...).Submit(ctx, calls...)
			if b, ok := batcher.IsBatchInterrupted(err); ok {
				fmt.Fprintf(out, "Batch interrupted at call %d of %d: %v\n", b.Index, len(calls), b.Err)
				return err
			}
			if err != nil {
				return err
			}
			printReceipt(out, receipt)
			for _, ev := range contract.DecodeEvents(receipt.Events) {
				fmt.Fprintf(out, "Event:     %s %v\n", ev.Name, ev.Args)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&suri, "suri", "//Alice", "Secret URI of the signer")
	cmd.Flags().StringVar(&value, "value", "", "Balance transferred with each call")
	cmd.Flags().IntVar(&batch, "batch", 1, "Number of copies to submit in one batch")
	cmd.Flags().BoolVar(&query, "query", false, "Only dry-run and print the decoded output")
	return cmd
}

const saltSize = 32

// deploySalt decodes s, or returns a random salt when s is empty.
func deploySalt(s string) ([]byte, error) {
	if s == "" {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		return salt, nil
	}
	salt, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid salt %q: %w", s, err)
	}
	return salt, nil
}

func optionalBalance(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return batcher.ParseBalance(s)
}

func printReceipt(out io.Writer, r *batcher.Receipt) {
	fmt.Fprintf(out, "Status:    %s\n", r.Status.Kind)
	fmt.Fprintf(out, "Block:     #%d %s\n", r.BlockNumber, r.BlockHash.Hex())
	fmt.Fprintf(out, "Nonce:     %d\n", r.Nonce)
	for _, ev := range r.Events {
		fmt.Fprintf(out, "  %s\n", ev.Name())
	}
}
