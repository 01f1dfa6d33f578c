package awsapi

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// FakeClients is an in-memory implementation of every service interface,
// for unit tests. Jobs advance through scripted status sequences, one step
// per Describe call.
type FakeClients struct {
	// Backup state
	RecoveryPointsMap map[string]RecoveryPoint // keyed by ARN
	BackupJobs        map[string]*FakeJob
	RestoreJobs       map[string]*FakeJob
	StartedBackups    []string // resource ARNs, in call order
	StartedRestores   []StartedRestore
	DeletedPoints     []string

	// Cluster state
	ClustersMap   map[string]Cluster
	NodegroupsMap map[string]map[string]Nodegroup // cluster -> name -> ng
	AddonsMap     map[string]map[string]Addon     // cluster -> name -> addon
	// NodegroupErrs simulates detail-fetch failures per node group name.
	NodegroupErrs map[string]error

	// Identity state
	Account         string
	RolesMap        map[string]Role
	ProfilesMap     map[string]InstanceProfile
	TrustPolicies   map[string]string              // role -> trust policy doc
	AttachedArns    map[string][]string            // role -> managed policy ARNs
	InlineDocs      map[string]map[string]string   // role -> policy name -> doc
	RoleCreates     map[string]int                 // role -> CreateRole call count
	ProfileCreates  map[string]int
	ProfileBindings map[string][]string // profile -> role names added

	// Network state
	VPCs    map[string]VPC // keyed by Name tag
	Subnets map[string][]Subnet
	AZs     []string

	// Storage state
	FileSystems map[string]FileSystem // keyed by creation token

	jobSeq int
}

// StartedRestore records one StartRestoreJob call.
type StartedRestore struct {
	RecoveryPointArn string
	RoleArn          string
	ResourceType     string
	Metadata         map[string]string
}

// FakeJob scripts a job's status progression. Each Describe call returns the
// next status; the last one repeats forever.
type FakeJob struct {
	ID       string
	Statuses []string
	Message  string
	// ResultArn is the recovery point (backup) or created resource (restore)
	// reported once the job reaches its final scripted status.
	ResultArn string
	calls     int
}

func (j *FakeJob) next() (status string, terminal bool) {
	i := j.calls
	if i >= len(j.Statuses) {
		i = len(j.Statuses) - 1
	}
	j.calls++
	return j.Statuses[i], i == len(j.Statuses)-1
}

// NewFake returns an empty fake with all maps initialised.
func NewFake() *FakeClients {
	return &FakeClients{
		RecoveryPointsMap: map[string]RecoveryPoint{},
		BackupJobs:        map[string]*FakeJob{},
		RestoreJobs:       map[string]*FakeJob{},
		ClustersMap:       map[string]Cluster{},
		NodegroupsMap:     map[string]map[string]Nodegroup{},
		AddonsMap:         map[string]map[string]Addon{},
		NodegroupErrs:     map[string]error{},
		Account:           "111122223333",
		RolesMap:          map[string]Role{},
		ProfilesMap:       map[string]InstanceProfile{},
		TrustPolicies:     map[string]string{},
		AttachedArns:      map[string][]string{},
		InlineDocs:        map[string]map[string]string{},
		RoleCreates:       map[string]int{},
		ProfileCreates:    map[string]int{},
		ProfileBindings:   map[string][]string{},
		VPCs:              map[string]VPC{},
		Subnets:           map[string][]Subnet{},
		FileSystems:       map[string]FileSystem{},
	}
}

// Bundle returns the fake wired into a Clients bundle.
func (f *FakeClients) Bundle() *Clients {
	return &Clients{Backup: f, Cluster: f, Identity: f, Network: f, Storage: f}
}

// --- BackupService ---

func (f *FakeClients) StartBackupJob(_ context.Context, resourceArn, vaultName, roleArn string) (string, error) {
	f.jobSeq++
	id := fmt.Sprintf("backup-job-%d", f.jobSeq)
	f.StartedBackups = append(f.StartedBackups, resourceArn)
	if _, ok := f.BackupJobs[id]; !ok {
		f.BackupJobs[id] = &FakeJob{ID: id, Statuses: []string{"COMPLETED"}}
	}
	return id, nil
}

func (f *FakeClients) DescribeBackupJob(_ context.Context, jobID string) (BackupJob, error) {
	j, ok := f.BackupJobs[jobID]
	if !ok {
		return BackupJob{}, &NotFoundError{Resource: "backup job", Name: jobID}
	}
	status, terminal := j.next()
	job := BackupJob{ID: jobID, Status: status, Message: j.Message, CreatedAt: time.Now()}
	if terminal {
		job.RecoveryPointArn = j.ResultArn
	}
	return job, nil
}

func (f *FakeClients) StartRestoreJob(_ context.Context, recoveryPointArn, roleArn, resourceType string, metadata map[string]string) (string, error) {
	f.jobSeq++
	id := fmt.Sprintf("restore-job-%d", f.jobSeq)
	f.StartedRestores = append(f.StartedRestores, StartedRestore{
		RecoveryPointArn: recoveryPointArn,
		RoleArn:          roleArn,
		ResourceType:     resourceType,
		Metadata:         metadata,
	})
	if _, ok := f.RestoreJobs[id]; !ok {
		f.RestoreJobs[id] = &FakeJob{ID: id, Statuses: []string{"COMPLETED"}}
	}
	return id, nil
}

func (f *FakeClients) DescribeRestoreJob(_ context.Context, jobID string) (RestoreJob, error) {
	j, ok := f.RestoreJobs[jobID]
	if !ok {
		return RestoreJob{}, &NotFoundError{Resource: "restore job", Name: jobID}
	}
	status, terminal := j.next()
	job := RestoreJob{ID: jobID, Status: status, Message: j.Message, CreatedAt: time.Now()}
	if terminal {
		job.CreatedResourceArn = j.ResultArn
	}
	return job, nil
}

func (f *FakeClients) ListRecoveryPoints(_ context.Context, vaultName string) ([]RecoveryPoint, error) {
	out := make([]RecoveryPoint, 0, len(f.RecoveryPointsMap))
	for _, rp := range f.RecoveryPointsMap {
		out = append(out, rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Arn < out[j].Arn })
	return out, nil
}

func (f *FakeClients) DeleteRecoveryPoint(_ context.Context, vaultName, recoveryPointArn string) error {
	if _, ok := f.RecoveryPointsMap[recoveryPointArn]; !ok {
		return &NotFoundError{Resource: "recovery point", Name: recoveryPointArn}
	}
	delete(f.RecoveryPointsMap, recoveryPointArn)
	f.DeletedPoints = append(f.DeletedPoints, recoveryPointArn)
	return nil
}

// --- ClusterService ---

func (f *FakeClients) DescribeCluster(_ context.Context, name string) (Cluster, error) {
	c, ok := f.ClustersMap[name]
	if !ok {
		return Cluster{}, &NotFoundError{Resource: "cluster", Name: name}
	}
	return c, nil
}

func (f *FakeClients) ListNodegroups(_ context.Context, clusterName string) ([]string, error) {
	if _, ok := f.ClustersMap[clusterName]; !ok {
		return nil, &NotFoundError{Resource: "cluster", Name: clusterName}
	}
	names := make([]string, 0, len(f.NodegroupsMap[clusterName]))
	for name := range f.NodegroupsMap[clusterName] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeClients) DescribeNodegroup(_ context.Context, clusterName, name string) (Nodegroup, error) {
	if err, ok := f.NodegroupErrs[name]; ok {
		return Nodegroup{}, err
	}
	ng, ok := f.NodegroupsMap[clusterName][name]
	if !ok {
		return Nodegroup{}, &NotFoundError{Resource: "nodegroup", Name: name}
	}
	return ng, nil
}

func (f *FakeClients) ListAddons(_ context.Context, clusterName string) ([]string, error) {
	if _, ok := f.ClustersMap[clusterName]; !ok {
		return nil, &NotFoundError{Resource: "cluster", Name: clusterName}
	}
	names := make([]string, 0, len(f.AddonsMap[clusterName]))
	for name := range f.AddonsMap[clusterName] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeClients) CreateAddon(_ context.Context, clusterName, addonName string, podIdentity *PodIdentity) error {
	if _, ok := f.ClustersMap[clusterName]; !ok {
		return &NotFoundError{Resource: "cluster", Name: clusterName}
	}
	if f.AddonsMap[clusterName] == nil {
		f.AddonsMap[clusterName] = map[string]Addon{}
	}
	if _, ok := f.AddonsMap[clusterName][addonName]; ok {
		return &ConflictError{Resource: "addon", Name: addonName}
	}
	f.AddonsMap[clusterName][addonName] = Addon{Name: addonName, Status: "ACTIVE"}
	return nil
}

func (f *FakeClients) DescribeAddon(_ context.Context, clusterName, addonName string) (Addon, error) {
	ad, ok := f.AddonsMap[clusterName][addonName]
	if !ok {
		return Addon{}, &NotFoundError{Resource: "addon", Name: addonName}
	}
	return ad, nil
}

// --- IdentityService ---

func (f *FakeClients) GetRole(_ context.Context, name string) (Role, error) {
	r, ok := f.RolesMap[name]
	if !ok {
		return Role{}, &NotFoundError{Resource: "role", Name: name}
	}
	return r, nil
}

func (f *FakeClients) CreateRole(_ context.Context, name, description, trustPolicy string) (Role, error) {
	if _, ok := f.RolesMap[name]; ok {
		return Role{}, &ConflictError{Resource: "role", Name: name}
	}
	r := Role{Name: name, Arn: "arn:aws:iam::" + f.Account + ":role/" + name}
	f.RolesMap[name] = r
	f.TrustPolicies[name] = trustPolicy
	f.RoleCreates[name]++
	return r, nil
}

func (f *FakeClients) AttachRolePolicy(_ context.Context, roleName, policyArn string) error {
	if _, ok := f.RolesMap[roleName]; !ok {
		return &NotFoundError{Resource: "role", Name: roleName}
	}
	f.AttachedArns[roleName] = append(f.AttachedArns[roleName], policyArn)
	return nil
}

func (f *FakeClients) PutRolePolicy(_ context.Context, roleName, policyName, document string) error {
	if _, ok := f.RolesMap[roleName]; !ok {
		return &NotFoundError{Resource: "role", Name: roleName}
	}
	if f.InlineDocs[roleName] == nil {
		f.InlineDocs[roleName] = map[string]string{}
	}
	f.InlineDocs[roleName][policyName] = document
	return nil
}

func (f *FakeClients) GetInstanceProfile(_ context.Context, name string) (InstanceProfile, error) {
	p, ok := f.ProfilesMap[name]
	if !ok {
		return InstanceProfile{}, &NotFoundError{Resource: "instance profile", Name: name}
	}
	return p, nil
}

func (f *FakeClients) CreateInstanceProfile(_ context.Context, name string) (InstanceProfile, error) {
	if _, ok := f.ProfilesMap[name]; ok {
		return InstanceProfile{}, &ConflictError{Resource: "instance profile", Name: name}
	}
	p := InstanceProfile{Name: name, Arn: "arn:aws:iam::" + f.Account + ":instance-profile/" + name}
	f.ProfilesMap[name] = p
	f.ProfileCreates[name]++
	return p, nil
}

func (f *FakeClients) AddRoleToInstanceProfile(_ context.Context, profileName, roleName string) error {
	p, ok := f.ProfilesMap[profileName]
	if !ok {
		return &NotFoundError{Resource: "instance profile", Name: profileName}
	}
	p.RoleNames = append(p.RoleNames, roleName)
	f.ProfilesMap[profileName] = p
	f.ProfileBindings[profileName] = append(f.ProfileBindings[profileName], roleName)
	return nil
}

func (f *FakeClients) AccountID(_ context.Context) (string, error) {
	return f.Account, nil
}

// --- NetworkService ---

func (f *FakeClients) VPCByName(_ context.Context, name string) (VPC, error) {
	v, ok := f.VPCs[name]
	if !ok {
		return VPC{}, &NotFoundError{Resource: "vpc", Name: name}
	}
	return v, nil
}

func (f *FakeClients) SubnetsByVPC(_ context.Context, vpcID string) ([]Subnet, error) {
	return f.Subnets[vpcID], nil
}

func (f *FakeClients) AvailabilityZones(_ context.Context) ([]string, error) {
	return f.AZs, nil
}

// --- StorageService ---

func (f *FakeClients) FileSystemByCreationToken(_ context.Context, token string) (FileSystem, error) {
	fs, ok := f.FileSystems[token]
	if !ok {
		return FileSystem{}, &NotFoundError{Resource: "filesystem", Name: token}
	}
	return fs, nil
}
