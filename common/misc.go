package common

import (
	"hash/fnv"
	"os"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

func NextId(idWorker *sonyflake.Sonyflake) types.ID {
	id, err := idWorker.NextID()
	if err != nil {
		panic(err)
	}
	return types.ID(id)
}

// NewIDWorker never returns nil: when no private IPv4 address is available the machine id
// comes from MACHINE_ID or a hash of the hostname.
func NewIDWorker() *sonyflake.Sonyflake {
	if worker := sonyflake.NewSonyflake(sonyflake.Settings{}); worker != nil {
		return worker
	}
	return sonyflake.NewSonyflake(sonyflake.Settings{MachineID: fallbackMachineID})
}

func fallbackMachineID() (uint16, error) {
	if v := os.Getenv("MACHINE_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return 0, err
		}
		return uint16(id), nil
	}
	hostname, _ := os.Hostname()
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname + ":" + strconv.Itoa(os.Getpid())))
	return uint16(h.Sum32()), nil
}
