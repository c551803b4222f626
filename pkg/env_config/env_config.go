package env_config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	// failed invocations a job tolerates before it is parked in cooldown
	SCHED_RETRIES       = checkSchedRetries()
	SCHED_COOLDOWN_TICK = checkCooldownTick()
	// per-slot factor of the producer wait when a BLOCK buffer is full
	PUT_WAIT_NS_PER_SLOT = checkPutWait()
)

const (
	DEFAULT_SCHED_RETRIES        = 20
	DEFAULT_SCHED_COOLDOWN_TICK  = time.Millisecond
	DEFAULT_PUT_WAIT_NS_PER_SLOT = 50
)

func checkSchedRetries() int {
	return positiveIntFromEnv("SCHED_RETRIES", DEFAULT_SCHED_RETRIES)
}

func checkCooldownTick() time.Duration {
	us := positiveIntFromEnv("SCHED_COOLDOWN_TICK", int(DEFAULT_SCHED_COOLDOWN_TICK/time.Microsecond))
	return time.Duration(us) * time.Microsecond
}

func checkPutWait() int64 {
	return int64(positiveIntFromEnv("PUT_WAIT_NS_PER_SLOT", DEFAULT_PUT_WAIT_NS_PER_SLOT))
}

func positiveIntFromEnv(name string, def int) int {
	str := os.Getenv(name)
	if str == "" {
		return def
	}
	v, err := strconv.Atoi(str)
	if err != nil || v <= 0 {
		fmt.Fprintf(os.Stderr, "invalid %s: %s, using %d\n", name, str, def)
		return def
	}
	fmt.Fprintf(os.Stderr, "env str: %s, %s: %d\n", str, name, v)
	return v
}
