package runtime

// ContainerEnv describes where the process runs. Benchmark numbers taken in
// a container are subject to the cgroup CPU quota.
type ContainerEnv struct {
	Docker      bool   `json:"docker"`
	Kubernetes  bool   `json:"kubernetes"`
	ContainerID string `json:"containerId,omitempty"`
}

func ProbeContainerEnv() ContainerEnv {
	return ContainerEnv{
		Docker:      IsRunningAtDocker(),
		Kubernetes:  IsRunningAtKubernetes(),
		ContainerID: LoadContainerID(),
	}
}
