package main

import (
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gregLibert/pivcard/internal/config"
	"github.com/gregLibert/pivcard/pkg/iso7816"
	"github.com/gregLibert/pivcard/pkg/pcsc"
	"github.com/gregLibert/pivcard/pkg/piv"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	readerName := flag.String("reader", "", "use the first reader whose name contains this string")
	verbose := flag.Bool("v", false, "log every APDU exchange")
	askPIN := flag.Bool("pin", false, "prompt for the PIN and verify it")
	flag.Parse()

	log := logrus.New()

	// --- 1. Configuration ---
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}
		cfg = loaded
	}
	if *readerName != "" {
		cfg.Reader.Name = *readerName
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.ConfigureLogger(log); err != nil {
		log.Fatalf("Error configuring logger: %v", err)
	}

	// --- 2. Hardware Setup ---
	conn, err := pcsc.Connect(cfg.Reader.Index, cfg.Reader.Name)
	if err != nil {
		log.Fatalf("Error connecting to card: %v", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warnf("Failed to close connection: %v", err)
		}
	}()
	fmt.Printf(">> Using reader: %s\n", conn.Reader)

	client := iso7816.NewClient(conn).WithLogger(log)

	// --- 3. Execution Flow ---
	if err := step1SelectPIV(client); err != nil {
		log.Fatalf("Step 1: %v", err)
	}

	step2DeviceInfo(client, log)
	step3KeySlots(client, log)
	step4DataObjects(client, log)

	if *askPIN {
		step5VerifyPIN(client, log)
	}

	if cfg.Auth.ManagementKeyFile != "" {
		if err := step6Authenticate(conn, client, cfg); err != nil {
			log.Errorf("Step 6: %v", err)
		}
	}

	fmt.Println("\n>> Demo Finished Successfully")
}

// =========================================================================
// Helper Functions
// =========================================================================

func banner(title string) {
	fmt.Println("\n=============================================")
	fmt.Println(" " + title)
	fmt.Println("=============================================")
}

// step1SelectPIV selects the PIV application and prints the returned property template.
func step1SelectPIV(client *iso7816.Client) error {
	banner("Step 1: SELECT PIV APPLICATION")

	selectCmd := piv.NewSelectApplicationCommand()
	apdu, _ := selectCmd.CommandAPDU()
	trace, err := client.Send(apdu)
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}

	res, err := iso7816.NewSelectResult(trace)
	if err != nil {
		return fmt.Errorf("result creation failed: %w", err)
	}
	fmt.Println(res.Describe())

	resp, err := selectCmd.NewResponse(trace.Response())
	if err != nil {
		return err
	}
	apt, err := resp.Properties()
	if err != nil {
		return fmt.Errorf("PIV selection failed: %w", err)
	}
	fmt.Println(apt.Describe())
	return nil
}

// step2DeviceInfo reads the firmware version, the serial number and the PIN retry counter.
func step2DeviceInfo(client *iso7816.Client, log logrus.FieldLogger) {
	banner("Step 2: DEVICE INFORMATION")

	if resp, err := piv.Transmit[*piv.GetVersionResponse](client, piv.NewGetVersionCommand()); err != nil {
		log.Warnf("GET VERSION failed: %v", err)
	} else if v, err := resp.Version(); err != nil {
		fmt.Printf("   Version: %s\n", resp.StatusMessage())
	} else {
		fmt.Printf("   Version: %s\n", v)
	}

	if resp, err := piv.Transmit[*piv.GetSerialNumberResponse](client, piv.NewGetSerialNumberCommand()); err != nil {
		log.Warnf("GET SERIAL failed: %v", err)
	} else if serial, err := resp.SerialNumber(); err != nil {
		fmt.Printf("   Serial:  %s\n", resp.StatusMessage())
	} else {
		fmt.Printf("   Serial:  %d\n", serial)
	}

	resp, err := piv.Transmit[*piv.VerifyPinResponse](client, piv.NewPinRetriesQuery())
	if err != nil {
		log.Warnf("PIN retries query failed: %v", err)
		return
	}
	if n, ok, _ := resp.RetriesRemaining(); ok {
		fmt.Printf("   PIN:     %d retries remaining (%s)\n", n, resp.Status())
	} else {
		fmt.Printf("   PIN:     %s\n", resp.StatusMessage())
	}
}

// step3KeySlots prints the metadata of the references the card knows about.
func step3KeySlots(client *iso7816.Client, log logrus.FieldLogger) {
	banner("Step 3: KEY SLOT METADATA")

	slots := []piv.Slot{
		piv.SlotPIN, piv.SlotPUK, piv.SlotManagement,
		piv.SlotAuthentication, piv.SlotSignature, piv.SlotKeyManagement, piv.SlotCardAuthentication,
	}
	for _, slot := range slots {
		cmd, err := piv.NewGetMetadataCommand(slot)
		if err != nil {
			log.Warnf("slot %s: %v", slot, err)
			continue
		}
		resp, err := piv.Transmit[*piv.GetMetadataResponse](client, cmd)
		if err != nil {
			log.Warnf("GET METADATA %s failed: %v", slot, err)
			continue
		}
		if resp.Status() != piv.StatusSuccess {
			fmt.Printf("\n[Slot %s] %s\n", slot, resp.StatusMessage())
			continue
		}
		md, err := resp.Metadata()
		if err != nil {
			fmt.Printf("\n[Slot %s] (!) %v\n", slot, err)
			continue
		}
		fmt.Println()
		fmt.Println(md.Describe())
	}
}

// step4DataObjects reads the discovery and CHUID objects and lists the slot certificates.
func step4DataObjects(client *iso7816.Client, log logrus.FieldLogger) {
	banner("Step 4: DATA OBJECTS")

	if resp := getData(client, log, piv.DataTagDiscovery); resp != nil {
		if d, err := resp.Discovery(); err == nil {
			fmt.Println(d.Describe())
		} else {
			fmt.Printf("   (!) Discovery object: %v\n", err)
		}
	}

	if resp := getData(client, log, piv.DataTagCHUID); resp != nil {
		if c, err := resp.CardHolderUniqueID(); err == nil {
			fmt.Println(c.Describe())
		} else {
			fmt.Printf("   (!) CHUID: %v\n", err)
		}
	}

	for _, slot := range []piv.Slot{piv.SlotAuthentication, piv.SlotSignature, piv.SlotKeyManagement, piv.SlotCardAuthentication} {
		tag, _ := piv.CertificateTag(slot)
		resp := getData(client, log, tag)
		if resp == nil {
			continue
		}
		cert, err := resp.Certificate()
		if err != nil {
			fmt.Printf("   [Slot %s] (!) %v\n", slot, err)
			continue
		}
		fmt.Printf("   [Slot %s] %s (expires %s)\n", slot, cert.Subject, cert.NotAfter.Format("2006-01-02"))
	}
}

func getData(client *iso7816.Client, log logrus.FieldLogger, tag piv.DataTag) *piv.GetDataResponse {
	cmd, err := piv.NewGetDataCommand(tag)
	if err != nil {
		log.Warnf("GET DATA %s: %v", tag, err)
		return nil
	}
	resp, err := piv.Transmit[*piv.GetDataResponse](client, cmd)
	if err != nil {
		log.Warnf("GET DATA %s failed: %v", tag, err)
		return nil
	}
	if resp.Status() != piv.StatusSuccess {
		fmt.Printf("   %s: %s\n", tag, resp.StatusMessage())
		return nil
	}
	return resp
}

// step5VerifyPIN prompts for the PIN without echo and verifies it.
func step5VerifyPIN(client *iso7816.Client, log logrus.FieldLogger) {
	banner("Step 5: VERIFY PIN")

	fmt.Print("PIN: ")
	pin, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Errorf("reading PIN: %v", err)
		return
	}
	defer clear(pin)

	cmd, err := piv.NewVerifyPinCommand(pin)
	if err != nil {
		log.Errorf("VERIFY: %v", err)
		return
	}
	resp, err := piv.Transmit[*piv.VerifyPinResponse](client, cmd)
	if err != nil {
		log.Errorf("VERIFY failed: %v", err)
		return
	}
	fmt.Printf(">> %s\n", resp.StatusMessage())
}

// step6Authenticate authenticates the management key inside an exclusive transaction.
func step6Authenticate(conn *pcsc.Connection, client *iso7816.Client, cfg *config.Config) error {
	banner("Step 6: AUTHENTICATE MANAGEMENT KEY")

	key, err := cfg.ManagementKey()
	if err != nil {
		return err
	}
	defer clear(key)

	var result piv.AuthenticationResult
	err = conn.WithTransaction(func() error {
		var err error
		result, err = piv.AuthenticateManagementKey(client, cfg.KeyType(), key, cfg.Auth.Mutual, rand.Reader)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf(">> %s (%s)\n", result, cfg.KeyType())
	if !result.Succeeded() {
		return errors.New("management key rejected")
	}
	return nil
}
