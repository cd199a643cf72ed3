/*
Package iso7816 implements data structures and logic to interact with smart cards according to the ISO/IEC 7816 standard.

This package provides the fundamental building blocks for APDU (Application Protocol Data Unit) communication: Command and Response structures, Status Word (SW) analysis, and a Client handling the transport-level procedures of ISO 7816-4 (GET RESPONSE, wrong length correction and command chaining).

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - 0x63CX: Warning, counter value X (remaining verification attempts).
  - Other: Various error conditions.

# Usage Example: Selecting an Application

	client := iso7816.NewClient(card)

	trace, err := client.Send(iso7816.SelectByAID(iso7816.Class{}, aid))
	if err != nil {
	    log.Fatal(err)
	}

	result, err := iso7816.NewSelectResult(trace)
	if err != nil {
	    log.Fatal(err)
	}

	// Data reassembled across GET RESPONSE exchanges
	payload, err := result.Payload()
	if err != nil {
	    log.Printf("selection failed: %v", err)
	    return
	}
	fmt.Printf("Application template: %X\n", payload)

	// Full human-readable report for debugging
	fmt.Println(result.Describe())
*/
package iso7816
