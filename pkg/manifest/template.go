package manifest

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Fixed values of the GPU workload template.
const (
	DefaultNamespace = "yn-gpu-workload"

	ContainerName       = "main"
	LabelUser           = "k8s-user"
	NodeSelectorPresent = "nvidia.com/gpu.present"
	NodeSelectorProduct = "nvidia.com/gpu.product"
	ResourceGPU         = "nvidia.com/gpu"

	homeMountPath  = "/home"
	shmMountPath   = "/dev/shm"
	shmSizeLimit   = "1200Gi"
	backoffLimit   = 0
	ttlAfterFinish = 60
)

// jobTemplate is a freshly built Job template with handles on the nodes
// that optional fields are injected into.
type jobTemplate struct {
	doc          *yaml.Node
	nodeSelector *yaml.Node
	container    *yaml.Node
	homeMount    *yaml.Node
}

// Template returns a fresh copy of the Job template as a YAML document node.
// Leaves carry ${name} placeholders; see the package documentation.
func Template() *yaml.Node {
	return newJobTemplate().doc
}

func newJobTemplate() *jobTemplate {
	nodeSelector := mapping(
		NodeSelectorPresent, str("true"),
	)

	homeMount := mapping(
		"name", str("home"),
		"mountPath", str(homeMountPath),
	)

	container := mapping(
		"name", str(ContainerName),
		"image", str("${image}"),
		"env", seq(
			mapping("name", str("HOME"), "value", str(homeMountPath)),
			mapping("name", str("HF_LOCAL_STORAGE"), "value", str("${hf_local_storage}")),
			mapping("name", str("HF_TOKEN"), "value", str("${hf_token}")),
		),
		"volumeMounts", seq(
			mapping("name", str("shm"), "mountPath", str(shmMountPath)),
			homeMount,
		),
		"resources", mapping(
			"requests", mapping(
				"cpu", str("${cpu_low}"),
				"memory", str("${memory_low}"),
				ResourceGPU, str("${gpu_low}"),
			),
			"limits", mapping(
				"cpu", str("${cpu_high}"),
				"memory", str("${memory_high}"),
				ResourceGPU, str("${gpu_high}"),
			),
		),
		"imagePullPolicy", str("IfNotPresent"),
	)

	root := mapping(
		"apiVersion", str("batch/v1"),
		"kind", str("Job"),
		"metadata", mapping(
			"name", str("${k8s_user_name}-${job_name}"),
			"namespace", str("${namespace}"),
			"labels", mapping(
				LabelUser, str("${k8s_user_name}"),
			),
		),
		"spec", mapping(
			"backoffLimit", integer(backoffLimit),
			"ttlSecondsAfterFinished", integer(ttlAfterFinish),
			"template", mapping(
				"spec", mapping(
					"nodeSelector", nodeSelector,
					"securityContext", mapping(
						"runAsUser", str("${k8s_user_id}"),
						"runAsGroup", str("${k8s_user_group}"),
						"fsGroup", str("${k8s_user_group}"),
					),
					"containers", seq(container),
					"volumes", seq(
						mapping(
							"name", str("shm"),
							"emptyDir", mapping(
								"medium", str("Memory"),
								"sizeLimit", str(shmSizeLimit),
							),
						),
						mapping(
							"name", str("home"),
							"persistentVolumeClaim", mapping(
								"claimName", str("${k8s_gpu_pvc}"),
							),
						),
					),
					"restartPolicy", str("Never"),
				),
			),
		),
	)

	return &jobTemplate{
		doc:          &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}},
		nodeSelector: nodeSelector,
		container:    container,
		homeMount:    homeMount,
	}
}

// setGPUProduct pins the Job to a GPU product via node selector.
func (t *jobTemplate) setGPUProduct(product string) {
	setKey(t.nodeSelector, NodeSelectorProduct, str(product))
}

// setCommand sets the container entrypoint argv, placed after the image.
func (t *jobTemplate) setCommand(argv []string) {
	items := make([]*yaml.Node, 0, len(argv))
	for _, a := range argv {
		items = append(items, str(a))
	}
	insertAfter(t.container, "image", "command", seq(items...))
}

// setHomeSubPath mounts a sub directory of the home claim.
func (t *jobTemplate) setHomeSubPath(subPath string) {
	setKey(t.homeMount, "subPath", str(subPath))
}

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func integer(v int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)}
}

func seq(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

// mapping builds an ordered mapping from alternating string keys and nodes.
func mapping(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Content = append(n.Content, str(kv[i].(string)), kv[i+1].(*yaml.Node))
	}
	return n
}

// setKey replaces the value of key in m, appending the pair when absent.
func setKey(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, str(key), value)
}

// insertAfter places key right after the existing key after, or appends
// when after is missing. An existing key is replaced in place.
func insertAfter(m *yaml.Node, after, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != after {
			continue
		}
		rest := append([]*yaml.Node{str(key), value}, m.Content[i+2:]...)
		m.Content = append(m.Content[:i+2], rest...)
		return
	}
	m.Content = append(m.Content, str(key), value)
}

// lookup walks a mapping path and returns the value node, or nil.
func lookup(n *yaml.Node, path ...string) *yaml.Node {
	if n != nil && n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	for _, key := range path {
		if n == nil || n.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == key {
				next = n.Content[i+1]
				break
			}
		}
		n = next
	}
	return n
}
