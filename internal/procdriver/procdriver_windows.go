//go:build windows

package procdriver

import (
	"os/exec"
	"syscall"
	"time"
	"unsafe"
)

const (
	createNewProcessGroup = 0x00000200
	ctrlBreakEvent        = 1
	stillActive           = 259
	processTerminate      = 0x0001
	processQueryInfo      = 0x0400
)

var (
	kernel32                   = syscall.NewLazyDLL("kernel32.dll")
	procGenerateConsoleCtrl    = kernel32.NewProc("GenerateConsoleCtrlEvent")
	procOpenProcess            = kernel32.NewProc("OpenProcess")
	procTerminateProcess       = kernel32.NewProc("TerminateProcess")
	procGetExitCodeProcess     = kernel32.NewProc("GetExitCodeProcess")
	procCloseHandle            = kernel32.NewProc("CloseHandle")
)

// configureDetached places the child in a new process group so that a
// group-targeted CTRL_BREAK_EVENT (sent in Stop) reaches it without also
// reaching the manager's own console group.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

type driver struct{}

func (d *driver) Spawn(spec SpawnSpec) (Info, error) {
	cmd, err := buildCommand(spec)
	if err != nil {
		return Info{}, err
	}
	if err := applyResourceLimits(cmd, spec); err != nil {
		return Info{}, err
	}
	if err := cmd.Start(); err != nil {
		return Info{}, err
	}
	if spec.MaxMemoryBytes != nil {
		_ = assignJobObjectLimits(cmd.Process.Pid, *spec.MaxMemoryBytes)
	}
	return Info{PID: cmd.Process.Pid}, nil
}

func (d *driver) Stop(pid int, timeout time.Duration) error {
	// CREATE_NEW_PROCESS_GROUP makes this process's own pid also its
	// process group id, so targeting pid here reaches the whole group.
	_, _, _ = procGenerateConsoleCtrl.Call(uintptr(ctrlBreakEvent), uintptr(pid))

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !d.IsAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !d.IsAlive(pid) {
		return nil
	}
	return d.Kill(pid)
}

func (d *driver) Kill(pid int) error {
	handle, err := openProcess(processTerminate, pid)
	if err != nil {
		// Process already gone; treat as success.
		return nil
	}
	defer closeHandle(handle)
	ret, _, callErr := procTerminateProcess.Call(uintptr(handle), uintptr(1))
	if ret == 0 {
		return callErr
	}
	return nil
}

func (d *driver) IsAlive(pid int) bool {
	handle, err := openProcess(processQueryInfo, pid)
	if err != nil {
		return false
	}
	defer closeHandle(handle)
	var code uint32
	ret, _, _ := procGetExitCodeProcess.Call(uintptr(handle), uintptr(unsafe.Pointer(&code)))
	if ret == 0 {
		return false
	}
	return code == stillActive
}

// Wait is a non-blocking reap: query the exit code once; if the process is
// still STILL_ACTIVE, report nil, otherwise report the exit code.
func (d *driver) Wait(pid int) *int {
	handle, err := openProcess(processQueryInfo, pid)
	if err != nil {
		code := -1
		return &code
	}
	defer closeHandle(handle)
	var raw uint32
	ret, _, _ := procGetExitCodeProcess.Call(uintptr(handle), uintptr(unsafe.Pointer(&raw)))
	if ret == 0 {
		return nil
	}
	if raw == stillActive {
		return nil
	}
	code := int(int32(raw))
	return &code
}

func openProcess(access uint32, pid int) (syscall.Handle, error) {
	ret, _, err := procOpenProcess.Call(uintptr(access), 0, uintptr(pid))
	if ret == 0 {
		return 0, err
	}
	return syscall.Handle(ret), nil
}

func closeHandle(h syscall.Handle) {
	_, _, _ = procCloseHandle.Call(uintptr(h))
}
