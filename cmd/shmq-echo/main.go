// Command shmq-echo is a two-process demonstration of shmipc: a parent
// creates a file-backed region holding two queues (spec §6's
// "Queue-in-region layout"), re-execs itself as a child over
// os/exec, and hands the contact descriptor to the child across an
// inherited pipe — standing in for the bootstrap/rendezvous channel
// spec.md §1 explicitly leaves to external collaborators ("any channel
// carrying opaque bytes and an integer length works").
//
// The parent sends payload on queue A; the child echoes each message
// back on queue B. This exercises create/contact/attach end to end
// (spec §8 scenarios 1 and 3) with two real OS processes instead of
// two method handles in one.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"

	"github.com/fzheng/shmipc"
	"github.com/fzheng/shmipc/internal/layout"
	regionpkg "github.com/fzheng/shmipc/internal/region"
)

const (
	maxSlots     = 8
	maxPayload   = 256
	pipeFD       = 3
	contactFDEnv = "SHMQ_ECHO_ROLE"
)

func main() {
	role := flag.String("role", "parent", "parent|child")
	messages := flag.Int("messages", 5, "number of messages to exchange")
	regionSize := flag.Uint64("size", 0, "region size in bytes (child only; carried by contact otherwise)")
	payload := flag.String("payload", "hello from parent", "payload text the parent sends")
	flag.Parse()

	switch *role {
	case "parent":
		runParent(*messages, *payload)
	case "child":
		runChild(*messages, uintptr(*regionSize))
	default:
		log.Fatalf("shmq-echo: unknown -role %q", *role)
	}
}

func runParent(messages int, payload string) {
	m, err := shmipc.ShmInit(shmipc.BackendFileMapped, nil, nil)
	if err != nil {
		log.Fatalf("shmq-echo: ShmInit: %v", err)
	}

	queueSize := shmipc.CalculateQueueSize(maxSlots, maxPayload)
	offsetA := layout.Size
	offsetB := offsetA + queueSize
	totalSize := offsetB + queueSize

	region, err := m.CreateRegion(totalSize, 0)
	if err != nil {
		log.Fatalf("shmq-echo: CreateRegion: %v", err)
	}
	layout.Write(region.Addr(), os.Getpid(), offsetA, offsetB)

	queueA, err := shmipc.CreateQueue(region, offsetA, maxSlots, maxPayload)
	if err != nil {
		log.Fatalf("shmq-echo: CreateQueue A: %v", err)
	}
	queueB, err := shmipc.CreateQueue(region, offsetB, maxSlots, maxPayload)
	if err != nil {
		log.Fatalf("shmq-echo: CreateQueue B: %v", err)
	}

	sender, err := shmipc.NewSender(queueA, nil)
	if err != nil {
		log.Fatalf("shmq-echo: NewSender: %v", err)
	}
	receiver, err := shmipc.NewReceiver(queueB, nil)
	if err != nil {
		log.Fatalf("shmq-echo: NewReceiver: %v", err)
	}

	contact, err := m.Contact(region)
	if err != nil {
		log.Fatalf("shmq-echo: Contact: %v", err)
	}

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		log.Fatalf("shmq-echo: Pipe: %v", err)
	}

	child := exec.Command(os.Args[0],
		"-role=child",
		fmt.Sprintf("-messages=%d", messages),
		fmt.Sprintf("-size=%d", totalSize),
	)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.ExtraFiles = []*os.File{readEnd}
	if err := child.Start(); err != nil {
		log.Fatalf("shmq-echo: start child: %v", err)
	}
	readEnd.Close()

	if err := writeLengthPrefixed(writeEnd, contact); err != nil {
		log.Fatalf("shmq-echo: send contact: %v", err)
	}
	writeEnd.Close()

	for i := 0; i < messages; i++ {
		msg := fmt.Sprintf("%s #%d", payload, i)
		if err := sender.Enqueue([]byte(msg)); err != nil {
			log.Fatalf("shmq-echo: Enqueue: %v", err)
		}
		echoed, err := receiver.Dequeue()
		if err != nil {
			log.Fatalf("shmq-echo: Dequeue: %v", err)
		}
		fmt.Printf("parent: sent %q, got back %q\n", msg, string(echoed))
		receiver.Release()
	}

	if err := child.Wait(); err != nil {
		log.Fatalf("shmq-echo: child exited with error: %v", err)
	}

	if err := m.DestroyRegion(region); err != nil {
		log.Fatalf("shmq-echo: DestroyRegion: %v", err)
	}
	if err := m.ShmFinalize(); err != nil {
		log.Fatalf("shmq-echo: ShmFinalize: %v", err)
	}
}

func runChild(messages int, regionSize uintptr) {
	pipe := os.NewFile(pipeFD, "shmq-echo-contact")
	contact, err := readLengthPrefixed(pipe)
	if err != nil {
		log.Fatalf("shmq-echo child: read contact: %v", err)
	}
	pipe.Close()

	m, err := shmipc.ShmInit(shmipc.BackendFileMapped, nil, nil)
	if err != nil {
		log.Fatalf("shmq-echo child: ShmInit: %v", err)
	}

	region, err := m.AttachRegion(regionpkg.UnknownCreator, contact, regionSize, 0)
	if err != nil {
		log.Fatalf("shmq-echo child: AttachRegion: %v", err)
	}

	creatorPID, offsetA, offsetB := layout.Read(region.Addr())

	queueA, err := shmipc.OpenQueue(region, offsetA)
	if err != nil {
		log.Fatalf("shmq-echo child: OpenQueue A: %v", err)
	}
	queueB, err := shmipc.OpenQueue(region, offsetB)
	if err != nil {
		log.Fatalf("shmq-echo child: OpenQueue B: %v", err)
	}

	receiver, err := shmipc.NewReceiver(queueA, nil)
	if err != nil {
		log.Fatalf("shmq-echo child: NewReceiver: %v", err)
	}
	sender, err := shmipc.NewSender(queueB, nil)
	if err != nil {
		log.Fatalf("shmq-echo child: NewSender: %v", err)
	}

	fmt.Printf("child: attached region created by pid %d\n", creatorPID)

	for i := 0; i < messages; i++ {
		msg, err := receiver.Dequeue()
		if err != nil {
			log.Fatalf("shmq-echo child: Dequeue: %v", err)
		}
		echoed := append([]byte("echo: "), msg...)
		receiver.Release()
		if err := sender.Enqueue(echoed); err != nil {
			log.Fatalf("shmq-echo child: Enqueue: %v", err)
		}
	}

	if err := m.DetachRegion(region); err != nil {
		log.Fatalf("shmq-echo child: DetachRegion: %v", err)
	}
	if err := m.ShmFinalize(); err != nil {
		log.Fatalf("shmq-echo child: ShmFinalize: %v", err)
	}
}

func writeLengthPrefixed(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
