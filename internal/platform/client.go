package platform

import "context"

const (
	Twitter   = "twitter"
	Facebook  = "facebook"
	Instagram = "instagram"
	LinkedIn  = "linkedin"
	TikTok    = "tiktok"
	YouTube   = "youtube"
)

// All returns the closed set of supported platforms.
func All() []string {
	return []string{Twitter, Facebook, Instagram, LinkedIn, TikTok, YouTube}
}

func IsValid(platform string) bool {
	for _, p := range All() {
		if p == platform {
			return true
		}
	}
	return false
}

type PublishRequest struct {
	TenantID    int64
	AccountRef  string
	AccessToken string
	Title       string
	Caption     string
	MediaURLs   []string
}

type PublishResult struct {
	PostID  string
	PostURL string
}

// PublishClient is the opaque collaborator that pushes content to one
// external platform. One instance serves one platform.
type PublishClient interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
}

// Registry maps platform identifiers to their publish clients.
type Registry struct {
	clients map[string]PublishClient
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]PublishClient)}
}

func (r *Registry) Register(platform string, client PublishClient) {
	r.clients[platform] = client
}

func (r *Registry) Client(platform string) (PublishClient, bool) {
	client, ok := r.clients[platform]
	return client, ok
}
