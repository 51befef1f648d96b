package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/rehabdao/attestd/internal/domain"
	"github.com/rehabdao/attestd/internal/hasher"
	"github.com/rehabdao/attestd/internal/schema"
)

func newRootCmd() *cobra.Command {
	var output string

	root := &cobra.Command{
		Use:   "attestctl",
		Short: "Work with session attestation payloads offline",
		Long: `attestctl hashes identifying strings, encodes session records into the
registry's ABI layout, decodes attestation data and derives schema UIDs.

Examples:
  attestctl hash "Dr. Jane Smith"
  attestctl encode --schema v2 --file session.json
  attestctl decode --schema v1 0x...
  attestctl schema-uid --schema v1 --output json`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")

	root.AddCommand(
		newHashCmd(&output),
		newEncodeCmd(&output),
		newDecodeCmd(&output),
		newSchemaUIDCmd(&output),
	)
	return root
}

type hashResult struct {
	Digest string `json:"digest" yaml:"digest"`
}

func newHashCmd(output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <text>",
		Short: "Print the keccak-256 digest of an identifying string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := hasher.Hash(args[0])
			if err != nil {
				return err
			}
			res := hashResult{Digest: hasher.Hex(h)}
			return render(cmd.OutOrStdout(), *output, "Digest", []field{{"digest", res.Digest}}, res)
		},
	}
}

// recordFile is the encode input. Raw therapistInfo / patientInfo are
// hashed; precomputed digests are used as given.
type recordFile struct {
	SessionCompleted bool   `json:"sessionCompleted"`
	SessionDate      string `json:"sessionDate"`
	TherapistInfo    string `json:"therapistInfo"`
	TherapistID      string `json:"therapistId"`
	PatientInfo      string `json:"patientInfo"`
	PatientHash      string `json:"patientHash"`
	SessionDuration  uint64 `json:"sessionDuration"`
	SessionType      string `json:"sessionType"`
	Timestamp        uint64 `json:"timestamp"`
	Notes            string `json:"notes"`
	SessionHash      string `json:"sessionHash"`
}

func (f recordFile) toSessionRecord(sc *schema.Schema) (domain.SessionRecord, error) {
	therapistID, err := digestOrHash("therapistId", f.TherapistID, f.TherapistInfo)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	patientHash, err := digestOrHash("patientHash", f.PatientHash, f.PatientInfo)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	sessionType, err := domain.ParseSessionType(f.SessionType)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	rec := domain.SessionRecord{
		SessionCompleted: f.SessionCompleted,
		SessionDate:      f.SessionDate,
		TherapistID:      therapistID,
		PatientHash:      patientHash,
		SessionDuration:  f.SessionDuration,
		SessionType:      sessionType,
		Timestamp:        f.Timestamp,
		Notes:            f.Notes,
	}
	if f.SessionHash != "" {
		if rec.SessionHash, err = domain.ParseDigest("sessionHash", f.SessionHash); err != nil {
			return domain.SessionRecord{}, err
		}
	} else if sc.Has("sessionHash") {
		rec.SessionHash = hasher.SessionHash(therapistID, patientHash, f.SessionDate)
	}
	return rec, nil
}

func digestOrHash(field, digest, raw string) (common.Hash, error) {
	if digest != "" {
		return domain.ParseDigest(field, digest)
	}
	h, err := hasher.Hash(raw)
	if err != nil {
		return common.Hash{}, &domain.ValidationError{Field: field, Err: err}
	}
	return h, nil
}

type encodeResult struct {
	Schema  string `json:"schema" yaml:"schema"`
	Version string `json:"version" yaml:"version"`
	Data    string `json:"data" yaml:"data"`
}

func newEncodeCmd(output *string) *cobra.Command {
	var version, file string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a session record JSON file into attestation data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := schema.Lookup(version)
			if err != nil {
				return err
			}

			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			var in recordFile
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("parse record: %w", err)
			}
			rec, err := in.toSessionRecord(sc)
			if err != nil {
				return err
			}

			data, err := sc.Encode(rec)
			if err != nil {
				return err
			}
			res := encodeResult{Schema: sc.String(), Version: sc.Version, Data: hexutil.Encode(data)}
			return render(cmd.OutOrStdout(), *output, "Encoded session", []field{
				{"version", res.Version},
				{"data", res.Data},
			}, res)
		},
	}
	cmd.Flags().StringVar(&version, "schema", schema.V1, "Schema version")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Record JSON file, - for stdin")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" || file == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

type sessionResult struct {
	SessionCompleted bool   `json:"sessionCompleted" yaml:"sessionCompleted"`
	SessionDate      string `json:"sessionDate" yaml:"sessionDate"`
	TherapistID      string `json:"therapistId" yaml:"therapistId"`
	PatientHash      string `json:"patientHash" yaml:"patientHash"`
	SessionDuration  uint64 `json:"sessionDuration" yaml:"sessionDuration"`
	SessionType      string `json:"sessionType" yaml:"sessionType"`
	Timestamp        uint64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Notes            string `json:"notes,omitempty" yaml:"notes,omitempty"`
	SessionHash      string `json:"sessionHash,omitempty" yaml:"sessionHash,omitempty"`
}

func newDecodeCmd(output *string) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "decode <0xdata>",
		Short: "Decode attestation data into a session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := schema.Lookup(version)
			if err != nil {
				return err
			}
			data, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("data must be 0x-prefixed hex: %w", err)
			}
			rec, err := sc.Decode(data)
			if err != nil {
				return err
			}

			res := sessionResult{
				SessionCompleted: rec.SessionCompleted,
				SessionDate:      rec.SessionDate,
				TherapistID:      rec.TherapistID.Hex(),
				PatientHash:      rec.PatientHash.Hex(),
				SessionDuration:  rec.SessionDuration,
				SessionType:      string(rec.SessionType),
				Timestamp:        rec.Timestamp,
				Notes:            rec.Notes,
			}
			if rec.SessionHash != (common.Hash{}) {
				res.SessionHash = rec.SessionHash.Hex()
			}

			fields := []field{
				{"sessionCompleted", strconv.FormatBool(res.SessionCompleted)},
				{"sessionDate", res.SessionDate},
				{"therapistId", res.TherapistID},
				{"patientHash", res.PatientHash},
				{"sessionDuration", strconv.FormatUint(res.SessionDuration, 10)},
				{"sessionType", res.SessionType},
			}
			if sc.Has("sessionHash") {
				fields = append(fields,
					field{"timestamp", strconv.FormatUint(res.Timestamp, 10)},
					field{"notes", res.Notes},
					field{"sessionHash", res.SessionHash},
				)
			}
			return render(cmd.OutOrStdout(), *output, "Session ("+sc.Version+")", fields, res)
		},
	}
	cmd.Flags().StringVar(&version, "schema", schema.V1, "Schema version")
	return cmd
}

type schemaUIDResult struct {
	Version   string `json:"version" yaml:"version"`
	Schema    string `json:"schema" yaml:"schema"`
	Resolver  string `json:"resolver" yaml:"resolver"`
	Revocable bool   `json:"revocable" yaml:"revocable"`
	UID       string `json:"uid" yaml:"uid"`
}

func newSchemaUIDCmd(output *string) *cobra.Command {
	var version, resolver string
	var revocable bool

	cmd := &cobra.Command{
		Use:   "schema-uid",
		Short: "Print a schema string and its registry UID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := schema.Lookup(version)
			if err != nil {
				return err
			}
			addr := common.Address{}
			if resolver != "" {
				if !common.IsHexAddress(resolver) {
					return fmt.Errorf("invalid resolver address %q", resolver)
				}
				addr = common.HexToAddress(resolver)
			}

			res := schemaUIDResult{
				Version:   sc.Version,
				Schema:    sc.String(),
				Resolver:  addr.Hex(),
				Revocable: revocable,
				UID:       sc.UID(addr, revocable).Hex(),
			}
			return render(cmd.OutOrStdout(), *output, "Schema "+sc.Version, []field{
				{"schema", res.Schema},
				{"resolver", res.Resolver},
				{"revocable", strconv.FormatBool(res.Revocable)},
				{"uid", res.UID},
			}, res)
		},
	}
	cmd.Flags().StringVar(&version, "schema", schema.V1, "Schema version")
	cmd.Flags().StringVar(&resolver, "resolver", "", "Resolver contract address")
	cmd.Flags().BoolVar(&revocable, "revocable", true, "Whether attestations under the schema are revocable")
	return cmd
}
